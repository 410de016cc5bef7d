package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"memory_bot/internal/model"
	"memory_bot/internal/telegram"
)

func (b *Bot) upsertUser(ctx context.Context, from *telegram.User) error {
	return b.store.UpsertUser(ctx, model.User{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		CreatedAt: time.Now().UTC(),
	})
}

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message, text string) {
	command := strings.Fields(text)[0]
	// Commands in groups arrive as /cmd@botname.
	if i := strings.Index(command, "@"); i != -1 {
		command = command[:i]
	}

	switch command {
	case "/start":
		b.sendText(ctx, msg.Chat.ID, msgStart)
	case "/help":
		b.sendText(ctx, msg.Chat.ID, msgHelp)
	case "/hooks":
		b.handleHooks(ctx, msg)
	case "/personality", "/role":
		b.handlePersonality(ctx, msg)
	case "/clean":
		b.handleClean(ctx, msg)
	case "/debug":
		b.handleDebug(ctx, msg)
	default:
		b.sendText(ctx, msg.Chat.ID, "Не знаю такой команды. /help покажет, что я умею.")
	}
}

func (b *Bot) handleHooks(ctx context.Context, msg *telegram.Message) {
	hooks, err := b.hooks.ActiveHooks(ctx, msg.From.ID, time.Now().UTC())
	if err != nil {
		log.Printf("ошибка загрузки хуков пользователя %d: %v", msg.From.ID, err)
		b.sendText(ctx, msg.Chat.ID, "Не получилось прочитать память, попробуйте позже.")
		return
	}
	if len(hooks) == 0 {
		b.sendText(ctx, msg.Chat.ID, msgHooksEmpty)
		return
	}

	var sb strings.Builder
	sb.WriteString(msgHooksHeader)
	for i, h := range hooks {
		fmt.Fprintf(&sb, "%d. %s", i+1, h.Text)
		if h.ExpiresAt != nil {
			fmt.Fprintf(&sb, " (до %s)", h.ExpiresAt.Format("2006-01-02 15:04 UTC"))
		}
		sb.WriteString("\n")
	}
	b.sendText(ctx, msg.Chat.ID, sb.String())
}

func (b *Bot) handlePersonality(ctx context.Context, msg *telegram.Message) {
	current := b.resolvePersonality(ctx, msg.From.ID)

	text := msgPersonalityNone
	if current != "" {
		text = msgPersonalityHeader + current
	}

	keyboard := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: btnPersonalityEdit, CallbackData: callbackPersonalityEdit},
				{Text: btnPersonalityClear, CallbackData: callbackPersonalityClear},
			},
		},
	}
	if _, err := b.tg.SendMessage(ctx, msg.Chat.ID, text, keyboard); err != nil {
		log.Printf("ошибка отправки меню роли в чат %d: %v", msg.Chat.ID, err)
	}
}

func (b *Bot) handleClean(ctx context.Context, msg *telegram.Message) {
	removed, err := b.hooks.WipeUser(ctx, msg.From.ID)
	if err != nil {
		log.Printf("ошибка очистки памяти пользователя %d: %v", msg.From.ID, err)
		b.sendText(ctx, msg.Chat.ID, "Не получилось очистить память, попробуйте позже.")
		return
	}
	b.windows.Clear(msg.From.ID)

	if removed == 0 {
		b.sendText(ctx, msg.Chat.ID, msgCleanEmpty)
		return
	}
	b.sendText(ctx, msg.Chat.ID, fmt.Sprintf(msgCleanDone, removed))
}

func (b *Bot) handleDebug(ctx context.Context, msg *telegram.Message) {
	now := time.Now().UTC()
	total, active, err := b.store.Counts(ctx, msg.From.ID, now)
	if err != nil {
		log.Printf("ошибка чтения статистики пользователя %d: %v", msg.From.ID, err)
	}

	var sb strings.Builder
	sb.WriteString("Служебная информация:\n")
	fmt.Fprintf(&sb, "Провайдер: %s\n", b.oracle.ProviderName())
	fmt.Fprintf(&sb, "Хранилище: %s\n", b.config.StoreBackend)
	fmt.Fprintf(&sb, "Хуков: %d (активных %d)\n", total, active)
	fmt.Fprintf(&sb, "Окно истории: %d/%d реплик\n", b.windows.Len(msg.From.ID), b.config.HistoryWindowSize)
	fmt.Fprintf(&sb, "Роль задана: %t\n", b.resolvePersonality(ctx, msg.From.ID) != "")
	fmt.Fprintf(&sb, "Предложений применено: %d, сбоев согласования: %d",
		b.hooks.Counters.ProposalsApplied.Load(), b.hooks.Counters.ReconcileFailures.Load())
	b.sendText(ctx, msg.Chat.ID, sb.String())
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if err := b.tg.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		log.Printf("ошибка подтверждения кнопки: %v", err)
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	switch cb.Data {
	case callbackPersonalityEdit:
		b.setPendingPersonality(cb.From.ID)
		if err := b.tg.EditMessageText(ctx, chatID, cb.Message.MessageID, msgPersonalityAsk); err != nil {
			log.Printf("ошибка редактирования сообщения: %v", err)
		}
	case callbackPersonalityClear:
		b.appendPersonalityRecord(ctx, cb.From.ID, nil)
		if err := b.tg.EditMessageText(ctx, chatID, cb.Message.MessageID, msgPersonalityReset); err != nil {
			log.Printf("ошибка редактирования сообщения: %v", err)
		}
	}
}

func (b *Bot) savePersonality(ctx context.Context, msg *telegram.Message, prompt string) {
	b.appendPersonalityRecord(ctx, msg.From.ID, &prompt)
	b.sendText(ctx, msg.Chat.ID, msgPersonalitySaved)
}

// appendPersonalityRecord writes one record to the append-only log. nil
// prompt is an explicit clear.
func (b *Bot) appendPersonalityRecord(ctx context.Context, userID int64, prompt *string) {
	rec := model.PersonalityRecord{
		ID:        uuid.NewString(),
		UserID:    &userID,
		Prompt:    prompt,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.store.AppendPersonality(ctx, rec); err != nil {
		log.Printf("ошибка сохранения роли пользователя %d: %v", userID, err)
	}
}
