package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"memory_bot/internal/util"
)

type metricsLogEntry struct {
	Timestamp         string `json:"timestamp"`
	Level             string `json:"level"`
	Msg               string `json:"msg"`
	BotUsername       string `json:"bot_username"`
	Provider          string `json:"provider"`
	Backend           string `json:"backend"`
	Proposals         int64  `json:"proposals"`
	ProposalsApplied  int64  `json:"proposals_applied"`
	ReconcileFailures int64  `json:"reconcile_failures"`
	OracleFailures    int64  `json:"oracle_failures"`
	HooksAdded        int64  `json:"hooks_added"`
	HooksUpdated      int64  `json:"hooks_updated"`
	HooksDeleted      int64  `json:"hooks_deleted"`
}

func (b *Bot) startMetricsLogger(ctx context.Context) {
	if b.config.MetricsLogFile == "" {
		return
	}

	interval := time.Duration(b.config.MetricsLogIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// One entry right after startup, the steady interval after that.
	if err := b.writeMetrics(); err != nil {
		log.Printf("ошибка записи метрик: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.writeMetrics(); err != nil {
				log.Printf("ошибка записи метрик: %v", err)
			}
		}
	}
}

func (b *Bot) writeMetrics() error {
	f, err := os.OpenFile(util.GetFilePath(b.config.MetricsLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("открытие файла метрик: %w", err)
	}
	defer f.Close() //nolint:errcheck

	entry := metricsLogEntry{
		Timestamp:         time.Now().Format(time.RFC3339),
		Level:             "info",
		Msg:               "metrics",
		BotUsername:       b.me.Username,
		Provider:          b.oracle.ProviderName(),
		Backend:           b.config.StoreBackend,
		Proposals:         b.hooks.Counters.Proposals.Load(),
		ProposalsApplied:  b.hooks.Counters.ProposalsApplied.Load(),
		ReconcileFailures: b.hooks.Counters.ReconcileFailures.Load(),
		OracleFailures:    b.hooks.Counters.OracleFailures.Load(),
		HooksAdded:        b.hooks.Counters.HooksAdded.Load(),
		HooksUpdated:      b.hooks.Counters.HooksUpdated.Load(),
		HooksDeleted:      b.hooks.Counters.HooksDeleted.Load(),
	}
	return json.NewEncoder(f).Encode(entry)
}
