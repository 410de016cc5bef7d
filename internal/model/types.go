package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is a Telegram user known to the bot. Created on first contact,
// never deleted.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	FirstName string    `json:"first_name" db:"first_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Hook is a remembered free-text fact about a user. The text itself is the
// key the oracle uses for updates and deletions; ID is an internal stable
// identifier and must never leak into oracle-facing matching.
type Hook struct {
	ID        string     `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	Text      string     `json:"text" db:"text"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// ActiveAt reports whether the hook has not expired at the given instant.
func (h *Hook) ActiveAt(now time.Time) bool {
	return h.ExpiresAt == nil || h.ExpiresAt.After(now)
}

// HookTexts returns the texts of hooks in order.
func HookTexts(hooks []Hook) []string {
	texts := make([]string, len(hooks))
	for i, h := range hooks {
		texts[i] = h.Text
	}
	return texts
}

// PersonalityRecord is one entry of the append-only personality log.
// UserID == nil means global scope; Prompt == nil is an explicit "cleared"
// record. Records are never deleted, clearing appends a null prompt.
type PersonalityRecord struct {
	ID        string    `json:"id" db:"id"`
	UserID    *int64    `json:"user_id,omitempty" db:"user_id"`
	Prompt    *string   `json:"prompt,omitempty" db:"prompt"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ConversationTurn is one entry of the bounded per-user history window.
type ConversationTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// MutationProposal is the oracle's structured answer to one message.
// Field names mirror the manage_user_memory_hooks tool schema. A nil
// proposal means "nothing relevant"; that is not the same thing as a
// proposal with empty lists.
type MutationProposal struct {
	Additions []HookAddition `json:"hooks_to_add"`
	Updates   []HookUpdate   `json:"hooks_to_update"`
	Deletions []string       `json:"hooks_to_delete"`
}

// Empty reports whether the proposal carries no operations at all.
func (p *MutationProposal) Empty() bool {
	return p == nil || (len(p.Additions) == 0 && len(p.Updates) == 0 && len(p.Deletions) == 0)
}

// HookAddition is a new fact to remember, with an optional ISO-8601 expiry.
type HookAddition struct {
	Text      string `json:"text"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// UnmarshalJSON accepts both the object form {"text": ..., "expires_at": ...}
// and a bare string. Older oracle revisions emit plain strings in
// hooks_to_add and both shapes still occur in the wild.
func (a *HookAddition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		a.Text = s
		a.ExpiresAt = ""
		return nil
	}

	type plain HookAddition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = HookAddition(p)
	return nil
}

// HookUpdate retargets an existing fact by its exact old text.
type HookUpdate struct {
	OldText   string `json:"old_hook_text"`
	NewText   string `json:"new_hook_text"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
