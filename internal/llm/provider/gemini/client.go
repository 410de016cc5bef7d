package gemini

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"memory_bot/internal/config"
	"memory_bot/internal/llm"
	"memory_bot/internal/llm/provider"
	"memory_bot/internal/model"
)

const (
	// Extraction runs cold, replies stay conversational.
	extractionTemperature = 0.1
	replyTemperature      = 0.7
)

type Client struct {
	client    *genai.Client
	modelName string
}

func NewClient(cfg *config.Config) provider.Provider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Fatalf("ошибка создания клиента Gemini: %v", err)
	}

	modelName := cfg.GeminiModel
	if modelName == "" {
		modelName = "gemini-1.5-flash-latest"
	}

	return &Client{
		client: client,
		modelName: modelName,
	}
}

func (c *Client) Name() string { return "gemini" }

// manageHooksTool declares the memory-mutation function for the oracle.
func manageHooksTool() *genai.Tool {
	expiresAt := &genai.Schema{
		Type:        genai.TypeString,
		Description: "Момент истечения факта в формате ISO-8601 (например 2025-01-01T00:00:00Z) или null, если факт бессрочный.",
	}

	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        llm.ManageHooksToolName,
				Description: llm.ManageHooksToolDescription,
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"hooks_to_add": {
							Type:        genai.TypeArray,
							Description: "Список новых фактов о пользователе, которые нужно запомнить. Включай сюда и пожелания к стилю общения, и любые события, перемены, отношения, эмоции.",
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"text":       {Type: genai.TypeString},
									"expires_at": expiresAt,
								},
								Required: []string{"text"},
							},
						},
						"hooks_to_update": {
							Type:        genai.TypeArray,
							Description: "Список фактов для обновления. Указывает старый текст и новый текст.",
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"old_hook_text": {Type: genai.TypeString},
									"new_hook_text": {Type: genai.TypeString},
									"expires_at":    expiresAt,
								},
								Required: []string{"old_hook_text", "new_hook_text"},
							},
						},
						"hooks_to_delete": {
							Type:        genai.TypeArray,
							Description: "Список фактов, которые стали неактуальны и которые нужно удалить.",
							Items:       &genai.Schema{Type: genai.TypeString},
						},
					},
				},
			},
		},
	}
}

// ProposeMutations requests a memory mutation via function calling. The
// returned string holds the call arguments as JSON; a plain-text answer is
// returned as-is so the facade can attempt a JSON fallback parse.
func (c *Client) ProposeMutations(ctx context.Context, systemPrompt, message string, maxTokens int64) (string, error) {
	m := c.newModel(systemPrompt, extractionTemperature, maxTokens)
	m.Tools = []*genai.Tool{manageHooksTool()}

	resp, err := m.GenerateContent(ctx, genai.Text(message))
	if err != nil {
		log.Printf("ошибка вызова Gemini API (извлечение): %v", err)
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if fc, ok := part.(genai.FunctionCall); ok && fc.Name == llm.ManageHooksToolName {
			data, err := json.Marshal(fc.Args)
			if err != nil {
				return "", err
			}
			return string(data), nil
		}
	}

	return extractResponseText(resp), nil
}

func (c *Client) GenerateReply(ctx context.Context, systemPrompt string, history []model.ConversationTurn, message string, maxTokens int64, disableTools bool) (string, error) {
	m := c.newModel(systemPrompt, replyTemperature, maxTokens)
	if !disableTools {
		// The original bot serves replies from the same tool-equipped
		// model; occasionally it answers with a call instead of text,
		// which is what the tools-off retry is for.
		m.Tools = []*genai.Tool{manageHooksTool()}
	}

	cs := m.StartChat()
	cs.History = convertHistory(history)

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		log.Printf("ошибка вызова Gemini API (ответ): %v", err)
		return "", err
	}

	return extractResponseText(resp), nil
}

func (c *Client) newModel(systemPrompt string, temperature float32, maxTokens int64) *genai.GenerativeModel {
	// A fresh model per call: the genai model struct is mutable and the
	// bot serves users concurrently.
	m := c.client.GenerativeModel(c.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	m.SetTemperature(temperature)
	if maxTokens > 0 {
		m.SetMaxOutputTokens(int32(maxTokens))
	}
	return m
}

func convertHistory(history []model.ConversationTurn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		role := "user"
		if turn.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return contents
}

func extractResponseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var result string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			result += string(txt)
		}
	}
	return result
}
