package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"memory_bot/internal/model"
)

func newHook(userID int64, text string, expiresAt *time.Time) model.Hook {
	return model.Hook{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }

// testStoreSuite exercises the Store contract; both backends run it.
func testStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	const userID = int64(100500)

	user := model.User{ID: userID, Username: "ivan", FirstName: "Иван", CreatedAt: now}
	if err := s.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	user.Username = "ivan_new"
	if err := s.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser repeat: %v", err)
	}

	t.Run("additions preserve order", func(t *testing.T) {
		batch := MutationBatch{Additions: []model.Hook{
			newHook(userID, "У пользователя есть кот", nil),
			newHook(userID, "Кот стерилизован", nil),
			newHook(userID, "Коту 1.5 года", nil),
		}}
		if err := s.Reconcile(ctx, userID, batch); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}

		hooks, err := s.ListActive(ctx, userID, now)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		texts := model.HookTexts(hooks)
		want := []string{"У пользователя есть кот", "Кот стерилизован", "Коту 1.5 года"}
		if len(texts) != len(want) {
			t.Fatalf("got %d hooks, want %d: %v", len(texts), len(want), texts)
		}
		for i := range want {
			if texts[i] != want[i] {
				t.Errorf("hook %d = %q, want %q", i, texts[i], want[i])
			}
		}
	})

	t.Run("update retargets by exact text", func(t *testing.T) {
		expiry := timePtr(now.Add(24 * time.Hour))
		batch := MutationBatch{Updates: []HookRewrite{
			{OldText: "Кот стерилизован", NewText: "Кот не стерилизован", ExpiresAt: expiry},
		}}
		if err := s.Reconcile(ctx, userID, batch); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}

		hooks, err := s.ListActive(ctx, userID, now)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		found := false
		for _, h := range hooks {
			if h.Text == "Кот не стерилизован" {
				found = true
				if h.ExpiresAt == nil {
					t.Error("expiry not applied by update")
				}
			}
			if h.Text == "Кот стерилизован" {
				t.Error("old text still present after update")
			}
		}
		if !found {
			t.Errorf("updated hook missing: %v", model.HookTexts(hooks))
		}
	})

	t.Run("missing targets are skipped silently", func(t *testing.T) {
		batch := MutationBatch{
			Updates:   []HookRewrite{{OldText: "такого хука нет", NewText: "неважно"}},
			Deletions: []string{"такого тоже нет"},
		}
		if err := s.Reconcile(ctx, userID, batch); err != nil {
			t.Fatalf("Reconcile must not fail on missing targets: %v", err)
		}
	})

	t.Run("update sees same-batch addition", func(t *testing.T) {
		batch := MutationBatch{
			Additions: []model.Hook{newHook(userID, "Пользователь учит Go", nil)},
			Updates: []HookRewrite{
				{OldText: "Пользователь учит Go", NewText: "Пользователь пишет на Go"},
			},
		}
		if err := s.Reconcile(ctx, userID, batch); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}

		hooks, err := s.ListActive(ctx, userID, now)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		for _, h := range hooks {
			if h.Text == "Пользователь учит Go" {
				t.Error("same-batch addition not visible to update")
			}
		}
	})

	t.Run("deletion removes one hook", func(t *testing.T) {
		batch := MutationBatch{Deletions: []string{"Пользователь пишет на Go"}}
		if err := s.Reconcile(ctx, userID, batch); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		hooks, err := s.ListActive(ctx, userID, now)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		for _, h := range hooks {
			if h.Text == "Пользователь пишет на Go" {
				t.Error("deleted hook still present")
			}
		}
	})

	t.Run("expired hooks filtered from active list", func(t *testing.T) {
		past := timePtr(now.Add(-time.Hour))
		batch := MutationBatch{Additions: []model.Hook{
			newHook(userID, "Пользователь в отпуске", past),
		}}
		if err := s.Reconcile(ctx, userID, batch); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}

		active, err := s.ListActive(ctx, userID, now)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		for _, h := range active {
			if h.Text == "Пользователь в отпуске" {
				t.Error("expired hook listed as active")
			}
		}

		all, err := s.ListAll(ctx, userID)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		found := false
		for _, h := range all {
			if h.Text == "Пользователь в отпуске" {
				found = true
			}
		}
		if !found {
			t.Error("expired hook missing from full list")
		}

		total, activeCount, err := s.Counts(ctx, userID, now)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		if total != activeCount+1 {
			t.Errorf("Counts: total=%d active=%d, want exactly one expired", total, activeCount)
		}
	})

	t.Run("purge removes expired hooks", func(t *testing.T) {
		removed, err := s.PurgeExpired(ctx, now)
		if err != nil {
			t.Fatalf("PurgeExpired: %v", err)
		}
		if removed != 1 {
			t.Errorf("PurgeExpired removed %d, want 1", removed)
		}

		total, active, err := s.Counts(ctx, userID, now)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		if total != active {
			t.Errorf("expired hooks remain after purge: total=%d active=%d", total, active)
		}
	})

	t.Run("personality log", func(t *testing.T) {
		uid := userID
		first := model.PersonalityRecord{
			ID: uuid.NewString(), UserID: &uid,
			Prompt: strPtr("Ты дворецкий"), CreatedAt: now,
		}
		if err := s.AppendPersonality(ctx, first); err != nil {
			t.Fatalf("AppendPersonality: %v", err)
		}

		rec, err := s.LatestPersonality(ctx, userID)
		if err != nil {
			t.Fatalf("LatestPersonality: %v", err)
		}
		if rec == nil || rec.Prompt == nil || *rec.Prompt != "Ты дворецкий" {
			t.Fatalf("unexpected latest record: %+v", rec)
		}

		cleared := model.PersonalityRecord{
			ID: uuid.NewString(), UserID: &uid,
			Prompt: nil, CreatedAt: now.Add(time.Second),
		}
		if err := s.AppendPersonality(ctx, cleared); err != nil {
			t.Fatalf("AppendPersonality clear: %v", err)
		}

		rec, err = s.LatestPersonality(ctx, userID)
		if err != nil {
			t.Fatalf("LatestPersonality: %v", err)
		}
		if rec == nil {
			t.Fatal("cleared record must still be returned")
		}
		if rec.Prompt != nil {
			t.Errorf("latest record must be the cleared one, got prompt %q", *rec.Prompt)
		}
	})

	t.Run("global personality", func(t *testing.T) {
		rec, err := s.LatestGlobalPersonality(ctx)
		if err != nil {
			t.Fatalf("LatestGlobalPersonality: %v", err)
		}
		if rec != nil {
			t.Fatalf("unexpected global record: %+v", rec)
		}

		global := model.PersonalityRecord{
			ID: uuid.NewString(), Prompt: strPtr("Отвечай кратко"), CreatedAt: now,
		}
		if err := s.AppendPersonality(ctx, global); err != nil {
			t.Fatalf("AppendPersonality global: %v", err)
		}

		rec, err = s.LatestGlobalPersonality(ctx)
		if err != nil {
			t.Fatalf("LatestGlobalPersonality: %v", err)
		}
		if rec == nil || rec.Prompt == nil || *rec.Prompt != "Отвечай кратко" {
			t.Fatalf("unexpected global record: %+v", rec)
		}
	})

	t.Run("delete all hooks", func(t *testing.T) {
		total, _, err := s.Counts(ctx, userID, now)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		removed, err := s.DeleteAllHooks(ctx, userID)
		if err != nil {
			t.Fatalf("DeleteAllHooks: %v", err)
		}
		if removed != total {
			t.Errorf("DeleteAllHooks removed %d, want %d", removed, total)
		}

		hooks, err := s.ListAll(ctx, userID)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		if len(hooks) != 0 {
			t.Errorf("hooks remain after wipe: %v", model.HookTexts(hooks))
		}
	})

	t.Run("other users untouched", func(t *testing.T) {
		const otherID = int64(200600)
		batch := MutationBatch{Additions: []model.Hook{
			newHook(otherID, "Другой пользователь любит чай", nil),
		}}
		if err := s.Reconcile(ctx, otherID, batch); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if _, err := s.DeleteAllHooks(ctx, userID); err != nil {
			t.Fatalf("DeleteAllHooks: %v", err)
		}
		hooks, err := s.ListActive(ctx, otherID, now)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		if len(hooks) != 1 {
			t.Errorf("other user's hooks affected: %v", model.HookTexts(hooks))
		}
	})
}
