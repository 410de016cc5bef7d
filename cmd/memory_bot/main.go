package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"memory_bot/internal/bot"
	"memory_bot/internal/config"
	"memory_bot/internal/hooks"
	"memory_bot/internal/llm"
	"memory_bot/internal/llm/provider"
	"memory_bot/internal/llm/provider/anthropic"
	"memory_bot/internal/llm/provider/gemini"
	"memory_bot/internal/slack"
	"memory_bot/internal/store"
	"memory_bot/internal/telegram"
	"memory_bot/internal/util"
)

func main() {
	config.LoadEnvironment()
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("ошибка конфигурации: %v", err)
	}

	instanceLock, err := util.AcquireInstanceLock("memory_bot.lock")
	if err != nil {
		log.Fatalf("бот не запущен: %v", err)
	}
	defer instanceLock.Unlock() //nolint:errcheck

	st, err := newStore(cfg)
	if err != nil {
		log.Fatalf("ошибка инициализации хранилища: %v", err)
	}
	defer st.Close() //nolint:errcheck

	oracle := llm.NewClient(cfg, newProvider(cfg))
	notifier := slack.NewClient(cfg.SlackToken, cfg.SlackChannelID, cfg.SlackErrorChannelID)
	hookSvc := hooks.NewService(cfg, st, oracle, notifier)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	persona := config.NewPersonaFile(cfg.PersonaFile)
	if err := persona.Watch(ctx); err != nil {
		log.Printf("наблюдение за файлом личности не запущено: %v", err)
	}

	tg := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIBase)
	b := bot.New(cfg, tg, st, hookSvc, oracle, notifier, persona)

	log.Println("Запускаю бота...")
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("бот остановлен с ошибкой: %v", err)
	}
	log.Println("Бот остановлен")
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedisStore(cfg.RedisURL, cfg.RedisPrefix)
	default:
		path := util.GetFilePath(cfg.SQLitePath)
		if err := util.EnsureDataDir(path); err != nil {
			return nil, err
		}
		return store.NewSQLiteStore(path)
	}
}

func newProvider(cfg *config.Config) provider.Provider {
	switch cfg.LLMProvider {
	case "anthropic":
		return anthropic.NewClient(cfg)
	default:
		return gemini.NewClient(cfg)
	}
}
