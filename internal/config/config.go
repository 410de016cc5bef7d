package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"memory_bot/internal/util"
)

type Config struct {
	TelegramBotToken string
	TelegramAPIBase  string

	// Оракул (LLM)
	LLMProvider        string // "gemini" | "anthropic"
	GeminiAPIKey       string
	GeminiModel        string
	AnthropicAuthToken string
	AnthropicBaseURL   string
	AnthropicModel     string

	// Хранилище
	StoreBackend string // "sqlite" | "redis"
	SQLitePath   string
	RedisURL     string
	RedisPrefix  string

	// Память и контекст
	HistoryWindowSize         int
	MaxHookChars              int
	MaxReplyTokens            int64
	MaxProposalTokens         int64
	PersonalityGlobalFallback bool
	PersonaFile               string

	// Операционные настройки
	SlackToken                 string
	SlackChannelID             string
	SlackErrorChannelID        string
	MetricsLogFile             string
	MetricsLogIntervalMinutes  int
	MaintenanceIntervalMinutes int
	PollTimeoutSeconds         int
}

// LoadEnvironment loads .env from the data directory when present. A
// missing file is fine: production deployments pass real environment
// variables instead.
func LoadEnvironment() {
	envPath := util.GetFilePath(".env")

	if err := godotenv.Load(envPath); err != nil {
		log.Printf(".env не найден (%s), используются переменные окружения", envPath)
		return
	}
	log.Printf(".env загружен: %s", envPath)
}

func LoadConfig() *Config {
	return &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBase:  getEnvWithDefault("TELEGRAM_API_BASE", "https://api.telegram.org"),

		LLMProvider:        getEnvWithDefault("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:       firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:        getEnvWithDefault("GEMINI_MODEL_NAME", "gemini-1.5-flash-latest"),
		AnthropicAuthToken: os.Getenv("ANTHROPIC_AUTH_TOKEN"),
		AnthropicBaseURL:   os.Getenv("ANTHROPIC_BASE_URL"),
		AnthropicModel:     os.Getenv("ANTHROPIC_DEFAULT_MODEL"),

		StoreBackend: getEnvWithDefault("STORE_BACKEND", "sqlite"),
		SQLitePath:   getEnvWithDefault("SQLITE_PATH", "memory_bot.db"),
		RedisURL:     os.Getenv("REDIS_URL"),
		RedisPrefix:  getEnvWithDefault("REDIS_PREFIX", "memory_bot:"),

		HistoryWindowSize:         parseIntWithDefault(os.Getenv("HISTORY_WINDOW_SIZE"), 20),
		MaxHookChars:              parseIntWithDefault(os.Getenv("MAX_HOOK_CHARS"), 1000),
		MaxReplyTokens:            int64(parseIntWithDefault(os.Getenv("MAX_REPLY_TOKENS"), 1024)),
		MaxProposalTokens:         int64(parseIntWithDefault(os.Getenv("MAX_PROPOSAL_TOKENS"), 1024)),
		PersonalityGlobalFallback: parseBool(os.Getenv("PERSONALITY_GLOBAL_FALLBACK"), false),
		PersonaFile:               os.Getenv("PERSONA_FILE"),

		SlackToken:                 os.Getenv("SLACK_TOKEN"),
		SlackChannelID:             os.Getenv("SLACK_CHANNEL_ID"),
		SlackErrorChannelID:        os.Getenv("SLACK_ERROR_CHANNEL_ID"),
		MetricsLogFile:             getEnvWithDefault("METRICS_LOG_FILE", "metrics.log"),
		MetricsLogIntervalMinutes:  parseIntWithDefault(os.Getenv("METRICS_LOG_INTERVAL_MINUTES"), 60),
		MaintenanceIntervalMinutes: parseIntWithDefault(os.Getenv("MAINTENANCE_INTERVAL_MINUTES"), 60),
		PollTimeoutSeconds:         parseIntWithDefault(os.Getenv("POLL_TIMEOUT_SECONDS"), 30),
	}
}

// Validate checks startup-time requirements. Only configuration problems
// are allowed to be fatal; everything past startup degrades instead.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return errMissing("TELEGRAM_BOT_TOKEN")
	}
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errMissing("GEMINI_API_KEY (или GOOGLE_API_KEY)")
		}
	case "anthropic":
		if c.AnthropicAuthToken == "" {
			return errMissing("ANTHROPIC_AUTH_TOKEN")
		}
	default:
		return &ConfigError{Field: "LLM_PROVIDER", Reason: "допустимые значения: gemini, anthropic"}
	}
	switch c.StoreBackend {
	case "sqlite":
	case "redis":
		if c.RedisURL == "" {
			return errMissing("REDIS_URL")
		}
	default:
		return &ConfigError{Field: "STORE_BACKEND", Reason: "допустимые значения: sqlite, redis"}
	}
	return nil
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return "не задана переменная окружения " + e.Field
	}
	return "неверное значение " + e.Field + ": " + e.Reason
}

func errMissing(field string) error {
	return &ConfigError{Field: field}
}

func getEnvWithDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1"
}

func parseIntWithDefault(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
