package bot

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"memory_bot/internal/config"
	"memory_bot/internal/hooks"
	"memory_bot/internal/llm"
	"memory_bot/internal/slack"
	"memory_bot/internal/store"
	"memory_bot/internal/telegram"
)

type Bot struct {
	config   *config.Config
	tg       *telegram.Client
	store    store.Store
	hooks    *hooks.Service
	oracle   *llm.Client
	windows  *store.Windows
	notifier *slack.Client
	persona  *config.PersonaFile

	me *telegram.User

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
	// Users who pressed "change personality" and whose next plain message
	// is the new prompt.
	pendingPersonality map[int64]bool
}

func New(cfg *config.Config, tg *telegram.Client, st store.Store, hookSvc *hooks.Service, oracle *llm.Client, notifier *slack.Client, persona *config.PersonaFile) *Bot {
	return &Bot{
		config:             cfg,
		tg:                 tg,
		store:              st,
		hooks:              hookSvc,
		oracle:             oracle,
		windows:            store.NewWindows(cfg.HistoryWindowSize),
		notifier:           notifier,
		persona:            persona,
		userLocks:          make(map[int64]*sync.Mutex),
		pendingPersonality: make(map[int64]bool),
	}
}

// Run verifies the token and long polls until ctx is done. Each update is
// handled on its own goroutine; per-user ordering comes from userLock.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.tg.GetMe(ctx)
	if err != nil {
		return err
	}
	b.me = me
	b.logStartupInfo()

	go b.hooks.RunMaintenance(ctx)
	go b.startMetricsLogger(ctx)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := b.tg.GetUpdates(ctx, offset, b.config.PollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("ошибка получения обновлений: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) logStartupInfo() {
	log.Printf("=== Запуск бота памяти ===")
	log.Printf("Аккаунт: @%s (id %d)", b.me.Username, b.me.ID)
	log.Printf("Провайдер LLM: %s", b.oracle.ProviderName())
	log.Printf("Хранилище: %s", b.config.StoreBackend)
	log.Printf("Окно истории: %d реплик", b.config.HistoryWindowSize)
	log.Printf("Глобальная роль как запасная: %t", b.config.PersonalityGlobalFallback)
	log.Printf("Уведомления Slack: %t", b.notifier.Enabled())
	log.Printf("=== Бот запущен ===")
}

func (b *Bot) handleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleIncoming(ctx, update.Message)
	}
}

func (b *Bot) handleIncoming(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.From.IsBot || strings.TrimSpace(msg.Text) == "" {
		return
	}

	lock := b.userLock(msg.From.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := b.upsertUser(ctx, msg.From); err != nil {
		log.Printf("ошибка сохранения пользователя %d: %v", msg.From.ID, err)
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg, text)
		return
	}

	if b.takePendingPersonality(msg.From.ID) {
		b.savePersonality(ctx, msg, text)
		return
	}

	b.processMessage(ctx, msg, text)
}

// userLock returns the mutex serializing one user's message pipeline.
func (b *Bot) userLock(userID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		b.userLocks[userID] = lock
	}
	return lock
}

func (b *Bot) setPendingPersonality(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingPersonality[userID] = true
}

func (b *Bot) takePendingPersonality(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pendingPersonality[userID] {
		return false
	}
	delete(b.pendingPersonality, userID)
	return true
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := b.tg.SendMessage(ctx, chatID, text, nil); err != nil {
		log.Printf("ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}
