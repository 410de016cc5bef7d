package hooks

import (
	"context"
	"log"
	"time"
)

// RunMaintenance periodically removes expired hooks from the store.
// Expired hooks are already invisible to prompts and lists; this only
// keeps the store from growing without bound. Blocks until ctx is done.
func (s *Service) RunMaintenance(ctx context.Context) {
	interval := time.Duration(s.config.MaintenanceIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeOnce(ctx)
		}
	}
}

func (s *Service) purgeOnce(ctx context.Context) {
	removed, err := s.store.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("ошибка очистки истёкших хуков: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("очистка памяти: удалено %d истёкших хуков", removed)
	}
}
