package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"memory_bot/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS hooks (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	text TEXT NOT NULL,
	expires_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hooks_user_id ON hooks(user_id);

CREATE TABLE IF NOT EXISTS personality_records (
	id TEXT PRIMARY KEY,
	user_id INTEGER,
	prompt TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_personality_user_id ON personality_records(user_id);
`

// SQLiteStore keeps all state in a single SQLite file. The default
// backend: one file under data/, no external services.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_loc=UTC", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("открытие базы SQLite: %w", err)
	}

	// SQLite handles one writer at a time; a larger pool only produces
	// SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("инициализация схемы SQLite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, user model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username, first_name = excluded.first_name`,
		user.ID, user.Username, user.FirstName, user.CreatedAt.UTC())
	return err
}

func (s *SQLiteStore) ListActive(ctx context.Context, userID int64, now time.Time) ([]model.Hook, error) {
	var hooks []model.Hook
	err := s.db.SelectContext(ctx, &hooks, `
		SELECT id, user_id, text, expires_at, created_at FROM hooks
		WHERE user_id = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY rowid`,
		userID, now.UTC())
	return hooks, err
}

func (s *SQLiteStore) ListAll(ctx context.Context, userID int64) ([]model.Hook, error) {
	var hooks []model.Hook
	err := s.db.SelectContext(ctx, &hooks, `
		SELECT id, user_id, text, expires_at, created_at FROM hooks
		WHERE user_id = ?
		ORDER BY rowid`,
		userID)
	return hooks, err
}

// Reconcile runs the whole batch in one transaction. Lookups happen inside
// the transaction so updates and deletions see hooks added a moment
// earlier in the same batch.
func (s *SQLiteStore) Reconcile(ctx context.Context, userID int64, batch MutationBatch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback()

	for _, h := range batch.Additions {
		var expiresAt interface{}
		if h.ExpiresAt != nil {
			expiresAt = h.ExpiresAt.UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hooks (id, user_id, text, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			h.ID, userID, h.Text, expiresAt, h.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("добавление хука: %w", err)
		}
	}

	for _, u := range batch.Updates {
		id, ok, err := firstHookID(ctx, tx, userID, u.OldText)
		if err != nil {
			return fmt.Errorf("поиск хука для обновления: %w", err)
		}
		if !ok {
			// Target text already changed or never existed, skip.
			continue
		}
		var expiresAt interface{}
		if u.ExpiresAt != nil {
			expiresAt = u.ExpiresAt.UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE hooks SET text = ?, expires_at = ? WHERE id = ?`,
			u.NewText, expiresAt, id); err != nil {
			return fmt.Errorf("обновление хука: %w", err)
		}
	}

	for _, text := range batch.Deletions {
		id, ok, err := firstHookID(ctx, tx, userID, text)
		if err != nil {
			return fmt.Errorf("поиск хука для удаления: %w", err)
		}
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM hooks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("удаление хука: %w", err)
		}
	}

	return tx.Commit()
}

// firstHookID resolves an exact-text target to the oldest matching hook.
func firstHookID(ctx context.Context, tx *sqlx.Tx, userID int64, text string) (string, bool, error) {
	var id string
	err := tx.GetContext(ctx, &id,
		`SELECT id FROM hooks WHERE user_id = ? AND text = ? ORDER BY rowid LIMIT 1`,
		userID, text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *SQLiteStore) DeleteAllHooks(ctx context.Context, userID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hooks WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM hooks WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Counts(ctx context.Context, userID int64, now time.Time) (int, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM hooks WHERE user_id = ?`, userID); err != nil {
		return 0, 0, err
	}
	var active int
	if err := s.db.GetContext(ctx, &active,
		`SELECT COUNT(*) FROM hooks WHERE user_id = ? AND (expires_at IS NULL OR expires_at > ?)`,
		userID, now.UTC()); err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func (s *SQLiteStore) AppendPersonality(ctx context.Context, rec model.PersonalityRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personality_records (id, user_id, prompt, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Prompt, rec.CreatedAt.UTC())
	return err
}

func (s *SQLiteStore) LatestPersonality(ctx context.Context, userID int64) (*model.PersonalityRecord, error) {
	var rec model.PersonalityRecord
	err := s.db.GetContext(ctx, &rec, `
		SELECT id, user_id, prompt, created_at FROM personality_records
		WHERE user_id = ?
		ORDER BY rowid DESC LIMIT 1`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) LatestGlobalPersonality(ctx context.Context) (*model.PersonalityRecord, error) {
	var rec model.PersonalityRecord
	err := s.db.GetContext(ctx, &rec, `
		SELECT id, user_id, prompt, created_at FROM personality_records
		WHERE user_id IS NULL
		ORDER BY rowid DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
