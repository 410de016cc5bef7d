package store

import (
	"context"
	"time"

	"memory_bot/internal/model"
)

// HookRewrite retargets one stored hook by its exact current text. A nil
// ExpiresAt clears any expiry the hook carried.
type HookRewrite struct {
	OldText   string
	NewText   string
	ExpiresAt *time.Time
}

// MutationBatch is a validated, normalized set of memory operations. The
// reconciliation engine builds it from an oracle proposal; stores apply it
// atomically in the fixed order additions, updates, deletions. Targets
// that match nothing are skipped, never errors.
type MutationBatch struct {
	Additions []model.Hook
	Updates   []HookRewrite
	Deletions []string
}

// Empty reports whether the batch carries no operations.
func (b *MutationBatch) Empty() bool {
	return len(b.Additions) == 0 && len(b.Updates) == 0 && len(b.Deletions) == 0
}

// Store is the persistence backend for users, hooks and personality
// records. Implementations: SQLite (default) and Redis.
type Store interface {
	// UpsertUser records the user on first contact and refreshes the
	// username and first name on later ones.
	UpsertUser(ctx context.Context, user model.User) error

	// ListActive returns the user's hooks that have not expired at now,
	// in creation order.
	ListActive(ctx context.Context, userID int64, now time.Time) ([]model.Hook, error)

	// ListAll returns all of the user's hooks in creation order,
	// expired ones included.
	ListAll(ctx context.Context, userID int64) ([]model.Hook, error)

	// Reconcile applies the batch atomically. Either every surviving
	// operation lands or none do; updates and deletions see hooks added
	// earlier in the same batch.
	Reconcile(ctx context.Context, userID int64, batch MutationBatch) error

	// DeleteAllHooks removes every hook the user has.
	DeleteAllHooks(ctx context.Context, userID int64) (int, error)

	// PurgeExpired removes hooks whose expiry has passed, across all
	// users. Returns the number removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)

	// Counts reports total and unexpired hook counts for the user.
	Counts(ctx context.Context, userID int64, now time.Time) (total, active int, err error)

	// AppendPersonality appends one record to the personality log.
	// Records are never rewritten; clearing is a record with nil Prompt.
	AppendPersonality(ctx context.Context, rec model.PersonalityRecord) error

	// LatestPersonality returns the newest record scoped to the user,
	// or nil when the user never set one.
	LatestPersonality(ctx context.Context, userID int64) (*model.PersonalityRecord, error)

	// LatestGlobalPersonality returns the newest global-scope record,
	// or nil when none exists.
	LatestGlobalPersonality(ctx context.Context) (*model.PersonalityRecord, error)

	Close() error
}
