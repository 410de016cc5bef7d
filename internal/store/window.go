package store

import (
	"sync"

	"memory_bot/internal/model"
)

// Windows holds the bounded per-user conversation history. It lives in
// memory only: a restart starts every conversation fresh, while hooks
// survive in the store.
type Windows struct {
	mu      sync.Mutex
	size    int
	entries map[int64][]model.ConversationTurn
}

// NewWindows creates the history holder. size is the maximum number of
// turns kept per user; older turns fall off the front.
func NewWindows(size int) *Windows {
	return &Windows{
		size:    size,
		entries: make(map[int64][]model.ConversationTurn),
	}
}

// Append adds one turn to the user's window, evicting the oldest turn
// when the window is full.
func (w *Windows) Append(userID int64, turn model.ConversationTurn) {
	w.mu.Lock()
	defer w.mu.Unlock()

	turns := append(w.entries[userID], turn)
	if len(turns) > w.size {
		turns = turns[len(turns)-w.size:]
	}
	w.entries[userID] = turns
}

// Snapshot returns a copy of the user's window in chronological order.
func (w *Windows) Snapshot(userID int64) []model.ConversationTurn {
	w.mu.Lock()
	defer w.mu.Unlock()

	turns := w.entries[userID]
	out := make([]model.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}

// Clear drops the user's window entirely.
func (w *Windows) Clear(userID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, userID)
}

// Len reports the number of turns currently held for the user.
func (w *Windows) Len(userID int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries[userID])
}
