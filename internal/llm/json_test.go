package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain object",
			input:    `{"hooks_to_add":[]}`,
			expected: `{"hooks_to_add":[]}`,
		},
		{
			name:     "markdown fence",
			input:    "```json\n{\"hooks_to_delete\":[\"a\"]}\n```",
			expected: `{"hooks_to_delete":["a"]}`,
		},
		{
			name:     "prose around object",
			input:    `Вот результат: {"hooks_to_add":[{"text":"У пользователя есть кот"}]} Готово.`,
			expected: `{"hooks_to_add":[{"text":"У пользователя есть кот"}]}`,
		},
		{
			name:     "array payload",
			input:    `ответ: ["a","b"]`,
			expected: `["a","b"]`,
		},
		{
			name:     "no json at all",
			input:    "просто текст без структуры",
			expected: "{}",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{
			name:  "intact object untouched",
			input: `{"hooks_to_add":[]}`,
			valid: true,
		},
		{
			name:  "truncated array of objects",
			input: `[{"text":"a"},{"text":"b"},{"te`,
			valid: true,
		},
		{
			name:  "truncated object after nested close",
			input: `{"hooks_to_update":[{"old_hook_text":"a","new_hook_text":"b"}`,
			valid: false, // array stays open, caller falls through to the log path
		},
		{
			name:  "array with no complete element",
			input: `[{"text":"a`,
			valid: true, // collapses to []
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := RepairJSON(tt.input)
			err := json.Unmarshal([]byte(repaired), new(interface{}))
			if tt.valid && err != nil {
				t.Errorf("RepairJSON(%q) = %q, still invalid: %v", tt.input, repaired, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("RepairJSON(%q) = %q, unexpectedly valid", tt.input, repaired)
			}
		})
	}
}

func TestUnmarshalWithRepair(t *testing.T) {
	type payload struct {
		Items []string `json:"items"`
	}

	t.Run("valid json", func(t *testing.T) {
		var p payload
		if err := UnmarshalWithRepair(`{"items":["a"]}`, &p, "test"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.Items) != 1 || p.Items[0] != "a" {
			t.Errorf("unexpected payload: %+v", p)
		}
	})

	t.Run("repairable truncation", func(t *testing.T) {
		var items []map[string]string
		if err := UnmarshalWithRepair(`[{"text":"a"},{"text"`, &items, "test"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 1 || items[0]["text"] != "a" {
			t.Errorf("unexpected items: %+v", items)
		}
	})

	t.Run("unrepairable garbage", func(t *testing.T) {
		var p payload
		if err := UnmarshalWithRepair(`не json`, &p, "test"); err == nil {
			t.Error("expected error for garbage input")
		}
	})
}
