package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"memory_bot/internal/config"
	"memory_bot/internal/hooks"
	"memory_bot/internal/llm"
	"memory_bot/internal/llm/provider"
	"memory_bot/internal/llm/provider/anthropic"
	"memory_bot/internal/llm/provider/gemini"
	"memory_bot/internal/model"
	"memory_bot/internal/slack"
	"memory_bot/internal/store"
	"memory_bot/internal/util"
)

// One-shot harness for poking the memory pipeline from the terminal,
// without Telegram. Uses a separate database so experiments never touch
// production memory.
func main() {
	mode := flag.String("mode", "cycle", "режим: propose (только извлечение), reply (только ответ), cycle (полный цикл)")
	message := flag.String("message", "Какой корм выбрать для стерилизованного кота 1.5 года?", "сообщение пользователя")
	userID := flag.Int64("user", 1, "идентификатор тестового пользователя")
	flag.Parse()

	config.LoadEnvironment()
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("ошибка конфигурации: %v", err)
	}

	path := util.GetFilePath("memory_bot_test.db")
	if err := util.EnsureDataDir(path); err != nil {
		log.Fatalf("ошибка создания каталога данных: %v", err)
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		log.Fatalf("ошибка открытия тестовой базы: %v", err)
	}
	defer st.Close() //nolint:errcheck

	oracle := llm.NewClient(cfg, newProvider(cfg))
	svc := hooks.NewService(cfg, st, oracle, slack.NewClient("", "", ""))

	ctx := context.Background()
	now := time.Now().UTC()

	existing, err := svc.ActiveHooks(ctx, *userID, now)
	if err != nil {
		log.Fatalf("ошибка загрузки хуков: %v", err)
	}
	facts := model.HookTexts(existing)

	fmt.Printf("Провайдер: %s\n", oracle.ProviderName())
	fmt.Printf("Сообщение: %s\n", *message)
	fmt.Printf("Известные факты (%d):\n", len(facts))
	for i, f := range facts {
		fmt.Printf("  %d. %s\n", i+1, f)
	}

	if *mode == "propose" || *mode == "cycle" {
		proposal := svc.Propose(ctx, *message, facts, "")
		if proposal == nil {
			fmt.Println("Оракул не предложил изменений памяти.")
		} else {
			fmt.Printf("Предложение: +%d ~%d -%d\n",
				len(proposal.Additions), len(proposal.Updates), len(proposal.Deletions))
			for _, a := range proposal.Additions {
				fmt.Printf("  + %s (срок: %s)\n", a.Text, orNone(a.ExpiresAt))
			}
			for _, u := range proposal.Updates {
				fmt.Printf("  ~ %s -> %s (срок: %s)\n", u.OldText, u.NewText, orNone(u.ExpiresAt))
			}
			for _, d := range proposal.Deletions {
				fmt.Printf("  - %s\n", d)
			}
			if *mode == "cycle" {
				if err := svc.Reconcile(ctx, *userID, proposal); err != nil {
					log.Fatalf("ошибка согласования: %v", err)
				}
				fmt.Println("Изменения применены.")
			}
		}
	}

	if *mode == "reply" || *mode == "cycle" {
		reply, err := oracle.GenerateReply(ctx, *message, facts, "", nil, false)
		if err != nil {
			log.Fatalf("ошибка генерации ответа: %v", err)
		}
		fmt.Printf("Ответ: %s\n", reply)
	}
}

func orNone(s string) string {
	if s == "" {
		return "нет"
	}
	return s
}

func newProvider(cfg *config.Config) provider.Provider {
	switch cfg.LLMProvider {
	case "anthropic":
		return anthropic.NewClient(cfg)
	default:
		return gemini.NewClient(cfg)
	}
}
