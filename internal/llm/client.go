package llm

import (
	"context"
	"strings"

	"memory_bot/internal/config"
	"memory_bot/internal/llm/provider"
	"memory_bot/internal/model"
)

// Client is the oracle facade: it owns prompt assembly and defensive
// proposal parsing, delegating transport to the configured provider.
type Client struct {
	provider provider.Provider
	config   *config.Config
}

func NewClient(cfg *config.Config, p provider.Provider) *Client {
	return &Client{
		provider: p,
		config:   cfg,
	}
}

// ProviderName reports the active backend for logging and /debug.
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// ProposeMutations asks the oracle whether the message changes what we
// know about the user. A nil proposal with nil error means "nothing
// relevant", which is the normal case.
func (c *Client) ProposeMutations(ctx context.Context, message string, activeHooks []string, personality string) (*model.MutationProposal, error) {
	systemPrompt := BuildExtractionSystemPrompt(activeHooks, personality)
	if c.provider.Name() != "gemini" {
		// Backends without native function calling get the JSON output
		// contract spelled out instead.
		systemPrompt = BuildExtractionTextPrompt(activeHooks, personality)
	}

	raw, err := c.provider.ProposeMutations(ctx, systemPrompt, message, c.config.MaxProposalTokens)
	if err != nil {
		return nil, err
	}

	return ParseProposal(raw)
}

// GenerateReply produces reply text. history is the window snapshot; the
// trailing user turn duplicating the current message is stripped so
// providers do not see it twice.
func (c *Client) GenerateReply(ctx context.Context, message string, activeHooks []string, personality string, history []model.ConversationTurn, disableTools bool) (string, error) {
	systemPrompt := BuildReplySystemPrompt(activeHooks, personality)

	prior := history
	if n := len(prior); n > 0 && prior[n-1].Role == model.RoleUser && prior[n-1].Text == message {
		prior = prior[:n-1]
	}

	text, err := c.provider.GenerateReply(ctx, systemPrompt, prior, message, c.config.MaxReplyTokens, disableTools)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ParseProposal decodes a raw oracle answer into a proposal. Absent fields
// become empty lists. An answer that is empty, unparseable, or carries no
// operations yields nil, never an error the message path would surface.
func ParseProposal(raw string) (*model.MutationProposal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	jsonStr := raw
	if !strings.HasPrefix(jsonStr, "{") {
		jsonStr = ExtractJSON(raw)
	}

	var proposal model.MutationProposal
	if err := UnmarshalWithRepair(jsonStr, &proposal, "извлечение фактов"); err != nil {
		return nil, nil
	}

	if proposal.Empty() {
		return nil, nil
	}
	return &proposal, nil
}
