package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"memory_bot/internal/config"
	"memory_bot/internal/hooks"
	"memory_bot/internal/llm"
	"memory_bot/internal/model"
	"memory_bot/internal/slack"
	"memory_bot/internal/store"
	"memory_bot/internal/telegram"
)

// scriptedProvider is a canned oracle for pipeline tests.
type scriptedProvider struct {
	mu sync.Mutex

	proposalRaw string
	proposalErr error
	replyText   string
	replyErr    error
	panicOnCall bool

	extractionPrompts []string
	replyPrompts      []string
	replyAttempts     int
}

func (p *scriptedProvider) Name() string { return "gemini" }

func (p *scriptedProvider) ProposeMutations(ctx context.Context, systemPrompt, message string, maxTokens int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicOnCall {
		panic("сбой провайдера")
	}
	p.extractionPrompts = append(p.extractionPrompts, systemPrompt)
	return p.proposalRaw, p.proposalErr
}

func (p *scriptedProvider) GenerateReply(ctx context.Context, systemPrompt string, history []model.ConversationTurn, message string, maxTokens int64, disableTools bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyPrompts = append(p.replyPrompts, systemPrompt)
	p.replyAttempts++
	return p.replyText, p.replyErr
}

// tgRecorder captures what the bot sends to the Bot API.
type tgRecorder struct {
	mu        sync.Mutex
	sent      []string
	edited    []string
	keyboards []*telegram.InlineKeyboardMarkup
}

func (r *tgRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		method := req.URL.Path[strings.LastIndex(req.URL.Path, "/")+1:]

		var params struct {
			Text        string                         `json:"text"`
			ReplyMarkup *telegram.InlineKeyboardMarkup `json:"reply_markup"`
		}
		_ = json.NewDecoder(req.Body).Decode(&params)

		r.mu.Lock()
		switch method {
		case "sendMessage":
			r.sent = append(r.sent, params.Text)
			r.keyboards = append(r.keyboards, params.ReplyMarkup)
		case "editMessageText":
			r.edited = append(r.edited, params.Text)
		}
		r.mu.Unlock()

		switch method {
		case "getMe":
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Память","username":"memory_bot"}}`))
		case "sendMessage":
			w.Write([]byte(`{"ok":true,"result":{"message_id":10,"chat":{"id":1,"type":"private"},"text":""}}`))
		default:
			w.Write([]byte(`{"ok":true,"result":true}`))
		}
	}
}

func (r *tgRecorder) lastSent(t *testing.T) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return r.sent[len(r.sent)-1]
}

func newTestBot(t *testing.T, provider *scriptedProvider) (*Bot, *tgRecorder) {
	t.Helper()

	recorder := &tgRecorder{}
	srv := httptest.NewServer(recorder.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		StoreBackend:      "sqlite",
		HistoryWindowSize: 20,
		MaxHookChars:      1000,
		MaxReplyTokens:    512,
		MaxProposalTokens: 512,
	}

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	oracle := llm.NewClient(cfg, provider)
	hookSvc := hooks.NewService(cfg, st, oracle, slack.NewClient("", "", ""))
	tg := telegram.NewClient("test-token", srv.URL)

	b := New(cfg, tg, st, hookSvc, oracle, slack.NewClient("", "", ""), nil)
	b.me = &telegram.User{ID: 1, Username: "memory_bot"}
	return b, recorder
}

func incoming(text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 1,
		From:      &telegram.User{ID: 555, FirstName: "Иван", Username: "ivan"},
		Chat:      telegram.Chat{ID: 555, Type: "private"},
		Text:      text,
	}
}

func TestProcessMessagePipeline(t *testing.T) {
	provider := &scriptedProvider{
		proposalRaw: `{"hooks_to_add":[{"text":"У пользователя есть кот"}]}`,
		replyText:   "Отличный выбор корма зависит от возраста кота.",
	}
	b, recorder := newTestBot(t, provider)
	ctx := context.Background()

	b.handleIncoming(ctx, incoming("Какой корм выбрать для кота?"))

	if got := recorder.lastSent(t); got != "Отличный выбор корма зависит от возраста кота." {
		t.Errorf("unexpected reply: %q", got)
	}

	stored, err := b.store.ListActive(ctx, 555, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(stored) != 1 || stored[0].Text != "У пользователя есть кот" {
		t.Errorf("hook not reconciled: %v", model.HookTexts(stored))
	}

	if n := b.windows.Len(555); n != 2 {
		t.Errorf("window = %d turns, want user+assistant", n)
	}
}

func TestReplyUsesPreBatchSnapshot(t *testing.T) {
	provider := &scriptedProvider{
		proposalRaw: `{"hooks_to_delete":["Пользователь ищет работу"]}`,
		replyText:   "Поздравляю!",
	}
	b, _ := newTestBot(t, provider)
	ctx := context.Background()

	seed := store.MutationBatch{Additions: []model.Hook{{
		ID: "seed-1", UserID: 555, Text: "Пользователь ищет работу", CreatedAt: time.Now().UTC(),
	}}}
	if err := b.store.Reconcile(ctx, 555, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b.handleIncoming(ctx, incoming("Я нашёл работу!"))

	// The hook is gone from the store but was still visible to the reply.
	stored, err := b.store.ListAll(ctx, 555)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("deletion not applied: %v", model.HookTexts(stored))
	}
	if len(provider.replyPrompts) == 0 || !strings.Contains(provider.replyPrompts[0], "Пользователь ищет работу") {
		t.Error("reply prompt must be built from the pre-batch snapshot")
	}
}

func TestReplyFallsBackAfterRetry(t *testing.T) {
	provider := &scriptedProvider{replyErr: errors.New("api down")}
	b, recorder := newTestBot(t, provider)

	b.handleIncoming(context.Background(), incoming("привет"))

	if provider.replyAttempts != 2 {
		t.Errorf("reply attempts = %d, want 2 (tools on, then off)", provider.replyAttempts)
	}
	if got := recorder.lastSent(t); got != llm.Messages.FallbackReply {
		t.Errorf("expected fallback reply, got %q", got)
	}
}

func TestPanicRecoveredIntoApology(t *testing.T) {
	provider := &scriptedProvider{panicOnCall: true}
	b, recorder := newTestBot(t, provider)

	b.handleIncoming(context.Background(), incoming("привет"))

	if got := recorder.lastSent(t); got != llm.Messages.InternalError {
		t.Errorf("expected internal error message, got %q", got)
	}
}

func TestHooksCommand(t *testing.T) {
	provider := &scriptedProvider{}
	b, recorder := newTestBot(t, provider)
	ctx := context.Background()

	b.handleIncoming(ctx, incoming("/hooks"))
	if got := recorder.lastSent(t); got != msgHooksEmpty {
		t.Errorf("expected empty-memory message, got %q", got)
	}

	seed := store.MutationBatch{Additions: []model.Hook{
		{ID: "h1", UserID: 555, Text: "У пользователя есть кот", CreatedAt: time.Now().UTC()},
		{ID: "h2", UserID: 555, Text: "Коту 1.5 года", CreatedAt: time.Now().UTC()},
	}}
	if err := b.store.Reconcile(ctx, 555, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b.handleIncoming(ctx, incoming("/hooks@memory_bot"))
	got := recorder.lastSent(t)
	if !strings.Contains(got, "1. У пользователя есть кот") || !strings.Contains(got, "2. Коту 1.5 года") {
		t.Errorf("hook list malformed: %q", got)
	}
}

func TestCleanCommand(t *testing.T) {
	provider := &scriptedProvider{}
	b, recorder := newTestBot(t, provider)
	ctx := context.Background()

	seed := store.MutationBatch{Additions: []model.Hook{
		{ID: "h1", UserID: 555, Text: "факт", CreatedAt: time.Now().UTC()},
	}}
	if err := b.store.Reconcile(ctx, 555, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b.windows.Append(555, model.ConversationTurn{Role: model.RoleUser, Text: "привет"})

	b.handleIncoming(ctx, incoming("/clean"))

	if !strings.Contains(recorder.lastSent(t), "Удалено фактов: 1") {
		t.Errorf("unexpected clean report: %q", recorder.lastSent(t))
	}
	if b.windows.Len(555) != 0 {
		t.Error("window not cleared")
	}
	stored, _ := b.store.ListAll(ctx, 555)
	if len(stored) != 0 {
		t.Error("hooks not wiped")
	}
}

func TestPersonalityFlow(t *testing.T) {
	provider := &scriptedProvider{replyText: "ответ"}
	b, recorder := newTestBot(t, provider)
	ctx := context.Background()

	b.handleIncoming(ctx, incoming("/personality"))
	if got := recorder.lastSent(t); got != msgPersonalityNone {
		t.Errorf("expected no-personality message, got %q", got)
	}
	recorder.mu.Lock()
	keyboard := recorder.keyboards[len(recorder.keyboards)-1]
	recorder.mu.Unlock()
	if keyboard == nil || len(keyboard.InlineKeyboard) != 1 || len(keyboard.InlineKeyboard[0]) != 2 {
		t.Fatalf("keyboard malformed: %+v", keyboard)
	}

	// Press "change", then send the new role as a plain message.
	b.handleCallback(ctx, &telegram.CallbackQuery{
		ID:      "cb1",
		From:    telegram.User{ID: 555},
		Message: &telegram.Message{MessageID: 10, Chat: telegram.Chat{ID: 555, Type: "private"}},
		Data:    callbackPersonalityEdit,
	})
	b.handleIncoming(ctx, incoming("Ты строгий редактор"))
	if got := recorder.lastSent(t); got != msgPersonalitySaved {
		t.Errorf("expected save confirmation, got %q", got)
	}

	rec, err := b.store.LatestPersonality(ctx, 555)
	if err != nil || rec == nil || rec.Prompt == nil || *rec.Prompt != "Ты строгий редактор" {
		t.Fatalf("personality not saved: rec=%+v err=%v", rec, err)
	}

	// The next chat message carries the role into the prompts.
	b.handleIncoming(ctx, incoming("проверь мой текст"))
	if len(provider.replyPrompts) == 0 || !strings.Contains(provider.replyPrompts[len(provider.replyPrompts)-1], "Ты строгий редактор") {
		t.Error("reply prompt must carry the personality")
	}

	// Clearing appends a null record that wins over the old prompt.
	b.handleCallback(ctx, &telegram.CallbackQuery{
		ID:      "cb2",
		From:    telegram.User{ID: 555},
		Message: &telegram.Message{MessageID: 11, Chat: telegram.Chat{ID: 555, Type: "private"}},
		Data:    callbackPersonalityClear,
	})
	if got := b.resolvePersonality(ctx, 555); got != "" {
		t.Errorf("personality must be cleared, got %q", got)
	}
}

func TestIgnoresBotsAndEmptyMessages(t *testing.T) {
	provider := &scriptedProvider{replyText: "ответ"}
	b, recorder := newTestBot(t, provider)
	ctx := context.Background()

	b.handleIncoming(ctx, &telegram.Message{
		From: &telegram.User{ID: 2, IsBot: true},
		Chat: telegram.Chat{ID: 2},
		Text: "я бот",
	})
	b.handleIncoming(ctx, incoming("   "))

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.sent) != 0 {
		t.Errorf("bot and empty messages must be ignored, sent: %v", recorder.sent)
	}
}

func TestGlobalPersonalityFallback(t *testing.T) {
	provider := &scriptedProvider{}
	b, _ := newTestBot(t, provider)
	ctx := context.Background()

	prompt := "Отвечай кратко"
	if err := b.store.AppendPersonality(ctx, model.PersonalityRecord{
		ID: "g1", Prompt: &prompt, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("AppendPersonality: %v", err)
	}

	// Disabled by default.
	if got := b.resolvePersonality(ctx, 555); got != "" {
		t.Errorf("fallback disabled, got %q", got)
	}

	b.config.PersonalityGlobalFallback = true
	if got := b.resolvePersonality(ctx, 555); got != "Отвечай кратко" {
		t.Errorf("fallback enabled, got %q", got)
	}

	// A user-level clear beats the global record.
	uid := int64(555)
	if err := b.store.AppendPersonality(ctx, model.PersonalityRecord{
		ID: "u1", UserID: &uid, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("AppendPersonality: %v", err)
	}
	if got := b.resolvePersonality(ctx, 555); got != "" {
		t.Errorf("explicit clear must win, got %q", got)
	}
}
