package hooks

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"memory_bot/internal/model"
	"memory_bot/internal/store"
	"memory_bot/internal/util"
)

// Reconcile validates the proposal, builds a mutation batch and applies
// it atomically. A storage failure leaves the user's memory untouched,
// notifies the error channel and returns the error; the caller still
// answers the user from the pre-batch snapshot.
func (s *Service) Reconcile(ctx context.Context, userID int64, proposal *model.MutationProposal) error {
	if proposal.Empty() {
		return nil
	}

	batch := s.buildBatch(userID, proposal, time.Now().UTC())
	if batch.Empty() {
		return nil
	}

	if err := s.store.Reconcile(ctx, userID, batch); err != nil {
		s.Counters.ReconcileFailures.Add(1)
		log.Printf("ошибка согласования памяти пользователя %d: %v", userID, err)
		s.notifier.PostErrorAsync(context.WithoutCancel(ctx), fmt.Sprintf(
			"Сбой согласования памяти (пользователь %d): %v\nПакет: +%d ~%d -%d",
			userID, err, len(batch.Additions), len(batch.Updates), len(batch.Deletions)))
		return err
	}

	s.Counters.ProposalsApplied.Add(1)
	s.Counters.HooksAdded.Add(int64(len(batch.Additions)))
	s.Counters.HooksUpdated.Add(int64(len(batch.Updates)))
	s.Counters.HooksDeleted.Add(int64(len(batch.Deletions)))
	log.Printf("память пользователя %d обновлена: +%d ~%d -%d",
		userID, len(batch.Additions), len(batch.Updates), len(batch.Deletions))
	return nil
}

// buildBatch normalizes the proposal: blank texts are dropped, texts are
// capped at the configured length, unparseable expiries are cleared with
// a log line. The store applies the result in the fixed order additions,
// updates, deletions.
func (s *Service) buildBatch(userID int64, proposal *model.MutationProposal, now time.Time) store.MutationBatch {
	var batch store.MutationBatch

	for _, add := range proposal.Additions {
		text := strings.TrimSpace(add.Text)
		if text == "" {
			continue
		}
		expiresAt, ok := ParseExpiry(add.ExpiresAt)
		if !ok {
			log.Printf("не удалось разобрать срок действия %q для хука %q, сохраняю бессрочно", add.ExpiresAt, text)
		}
		batch.Additions = append(batch.Additions, model.Hook{
			ID:        uuid.NewString(),
			UserID:    userID,
			Text:      util.Truncate(text, s.config.MaxHookChars),
			ExpiresAt: expiresAt,
			CreatedAt: now,
		})
	}

	for _, upd := range proposal.Updates {
		oldText := strings.TrimSpace(upd.OldText)
		newText := strings.TrimSpace(upd.NewText)
		if oldText == "" || newText == "" {
			continue
		}
		expiresAt, ok := ParseExpiry(upd.ExpiresAt)
		if !ok {
			log.Printf("не удалось разобрать срок действия %q для хука %q, сбрасываю срок", upd.ExpiresAt, newText)
		}
		batch.Updates = append(batch.Updates, store.HookRewrite{
			OldText:   oldText,
			NewText:   util.Truncate(newText, s.config.MaxHookChars),
			ExpiresAt: expiresAt,
		})
	}

	for _, del := range proposal.Deletions {
		text := strings.TrimSpace(del)
		if text == "" {
			continue
		}
		batch.Deletions = append(batch.Deletions, text)
	}

	return batch
}
