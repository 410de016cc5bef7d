package bot

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"memory_bot/internal/llm"
	"memory_bot/internal/model"
	"memory_bot/internal/telegram"
)

// Pipeline states, logged on every transition so a stuck message is easy
// to locate in the log.
type sessionState string

const (
	stateReceived   sessionState = "RECEIVED"
	stateFactsLoad  sessionState = "FACTS_LOADED"
	stateExtracted  sessionState = "EXTRACTED"
	stateReconciled sessionState = "RECONCILED"
	stateReplied    sessionState = "REPLIED"
	stateSent       sessionState = "SENT"
)

// session carries one message through the pipeline. The facts snapshot is
// taken before reconciliation and is what the reply is generated from,
// whatever the batch does.
type session struct {
	userID      int64
	chatID      int64
	message     string
	state       sessionState
	facts       []string
	personality string
	history     []model.ConversationTurn
	proposal    *model.MutationProposal
	reply       string
}

func (s *session) advance(state sessionState) {
	s.state = state
	log.Printf("пользователь %d: %s", s.userID, state)
}

// processMessage is the full pipeline for one plain message. Runs under
// the user's lock. A panic anywhere inside is recovered into an apology
// so one poisoned message cannot take the bot down.
func (b *Bot) processMessage(ctx context.Context, msg *telegram.Message, text string) {
	sess := &session{
		userID:  msg.From.ID,
		chatID:  msg.Chat.ID,
		message: text,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("паника при обработке сообщения пользователя %d: %v\n%s", sess.userID, r, debug.Stack())
			b.notifier.PostErrorAsync(context.WithoutCancel(ctx), fmt.Sprintf(
				"Паника при обработке сообщения (пользователь %d, состояние %s): %v", sess.userID, sess.state, r))
			b.sendText(ctx, sess.chatID, llm.Messages.InternalError)
		}
	}()

	sess.advance(stateReceived)
	b.windows.Append(sess.userID, model.ConversationTurn{Role: model.RoleUser, Text: text})

	now := time.Now().UTC()
	hooks, err := b.hooks.ActiveHooks(ctx, sess.userID, now)
	if err != nil {
		// Without the snapshot neither extraction nor a personalized
		// reply makes sense.
		log.Printf("ошибка загрузки хуков пользователя %d: %v", sess.userID, err)
		b.sendText(ctx, sess.chatID, llm.Messages.InternalError)
		return
	}
	sess.facts = model.HookTexts(hooks)
	sess.personality = b.resolvePersonality(ctx, sess.userID)
	sess.history = b.windows.Snapshot(sess.userID)
	sess.advance(stateFactsLoad)

	if err := b.tg.SendChatAction(ctx, sess.chatID, "typing"); err != nil {
		log.Printf("ошибка отправки индикатора набора: %v", err)
	}

	sess.proposal = b.hooks.Propose(ctx, text, sess.facts, sess.personality)
	sess.advance(stateExtracted)

	if err := b.hooks.Reconcile(ctx, sess.userID, sess.proposal); err != nil {
		// Fail open: memory stayed as it was, the reply path continues
		// from the snapshot.
		log.Printf("продолжаю без изменения памяти пользователя %d", sess.userID)
	}
	sess.advance(stateReconciled)

	sess.reply = b.generateReply(ctx, sess)
	sess.advance(stateReplied)

	b.windows.Append(sess.userID, model.ConversationTurn{Role: model.RoleAssistant, Text: sess.reply})
	b.sendText(ctx, sess.chatID, sess.reply)
	sess.advance(stateSent)
}

// generateReply asks the oracle for text, retrying once with tools
// disabled when the first attempt yields nothing. The fixed fallback goes
// out when both attempts fail.
func (b *Bot) generateReply(ctx context.Context, sess *session) string {
	reply, err := b.oracle.GenerateReply(ctx, sess.message, sess.facts, sess.personality, sess.history, false)
	if err == nil && reply != "" {
		return reply
	}
	if err != nil {
		log.Printf("ошибка генерации ответа для пользователя %d: %v", sess.userID, err)
	}

	reply, err = b.oracle.GenerateReply(ctx, sess.message, sess.facts, sess.personality, sess.history, true)
	if err == nil && reply != "" {
		return reply
	}
	if err != nil {
		log.Printf("повторная ошибка генерации ответа для пользователя %d: %v", sess.userID, err)
	}

	return llm.Messages.FallbackReply
}

// resolvePersonality returns the prompt used for this user: their own
// latest record wins, an explicit clear means no personality, and the
// global record applies only when the user never set one and the
// fallback is enabled.
func (b *Bot) resolvePersonality(ctx context.Context, userID int64) string {
	rec, err := b.store.LatestPersonality(ctx, userID)
	if err != nil {
		log.Printf("ошибка загрузки роли пользователя %d: %v", userID, err)
		return ""
	}
	if rec != nil {
		if rec.Prompt == nil {
			return ""
		}
		return *rec.Prompt
	}

	if b.config.PersonalityGlobalFallback {
		global, err := b.store.LatestGlobalPersonality(ctx)
		if err != nil {
			log.Printf("ошибка загрузки глобальной роли: %v", err)
			return ""
		}
		if global != nil && global.Prompt != nil {
			return *global.Prompt
		}
	}

	if b.persona != nil {
		return b.persona.Get()
	}
	return ""
}
