package anthropic

import (
	"context"
	"log"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"memory_bot/internal/config"
	"memory_bot/internal/llm/provider"
	"memory_bot/internal/model"
)

const (
	extractionTemperature = 0.1
	replyTemperature      = 0.7
)

type Client struct {
	client anthropic.Client
	config *config.Config
}

func NewClient(cfg *config.Config) provider.Provider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.AnthropicAuthToken)}
	if cfg.AnthropicBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.AnthropicBaseURL))
	}
	return &Client{
		client: anthropic.NewClient(opts...),
		config: cfg,
	}
}

func (c *Client) Name() string { return "anthropic" }

// ProposeMutations requests the mutation as compact JSON in the response
// text. Claude follows the JSON output contract in the system prompt
// reliably enough that no tool plumbing is needed; the facade parses and
// repairs the payload.
func (c *Client) ProposeMutations(ctx context.Context, systemPrompt, message string, maxTokens int64) (string, error) {
	return c.call(ctx, systemPrompt, nil, message, maxTokens, extractionTemperature)
}

func (c *Client) GenerateReply(ctx context.Context, systemPrompt string, history []model.ConversationTurn, message string, maxTokens int64, disableTools bool) (string, error) {
	// No tools are attached to the reply path here, so the tools-off
	// retry is a plain second attempt.
	return c.call(ctx, systemPrompt, history, message, maxTokens, replyTemperature)
}

func (c *Client) call(ctx context.Context, systemPrompt string, history []model.ConversationTurn, message string, maxTokens int64, temperature float64) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.config.AnthropicModel),
		MaxTokens:   maxTokens,
		Messages:    convertMessages(history, message),
		Temperature: anthropic.Float(temperature),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		log.Printf("ошибка вызова Anthropic API: %v", err)
		return "", err
	}

	return extractResponseText(msg), nil
}

func extractResponseText(msg *anthropic.Message) string {
	if len(msg.Content) > 0 {
		return msg.Content[0].Text
	}
	return ""
}

func convertMessages(history []model.ConversationTurn, message string) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role == model.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
		} else {
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		}
	}
	result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))
	return result
}
