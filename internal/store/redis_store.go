package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"memory_bot/internal/model"
)

// RedisStore keeps state in Redis: one hash of hooks per user plus a
// sorted set preserving creation order, and personality logs as lists.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("разбор REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("подключение к Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) userKey(userID int64) string {
	return fmt.Sprintf("%suser:%d", s.prefix, userID)
}

func (s *RedisStore) hooksKey(userID int64) string {
	return fmt.Sprintf("%shooks:%d", s.prefix, userID)
}

func (s *RedisStore) orderKey(userID int64) string {
	return fmt.Sprintf("%shookorder:%d", s.prefix, userID)
}

func (s *RedisStore) personalityKey(userID int64) string {
	return fmt.Sprintf("%spersonality:user:%d", s.prefix, userID)
}

func (s *RedisStore) globalPersonalityKey() string {
	return s.prefix + "personality:global"
}

func (s *RedisStore) UpsertUser(ctx context.Context, user model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.userKey(user.ID), data, 0).Err()
}

// loadHooks returns the user's hooks in creation order.
func (s *RedisStore) loadHooks(ctx context.Context, userID int64) ([]model.Hook, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, s.hooksKey(userID), ids...).Result()
	if err != nil {
		return nil, err
	}

	hooks := make([]model.Hook, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			log.Printf("хук %s отсутствует в хеше, пропускаю", ids[i])
			continue
		}
		var h model.Hook
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			return nil, fmt.Errorf("разбор хука %s: %w", ids[i], err)
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}

// storeHooks rewrites the user's hook state atomically, reassigning order
// scores by position.
func (s *RedisStore) storeHooks(ctx context.Context, userID int64, hooks []model.Hook) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.hooksKey(userID), s.orderKey(userID))
	for i, h := range hooks {
		data, err := json.Marshal(h)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, s.hooksKey(userID), h.ID, data)
		pipe.ZAdd(ctx, s.orderKey(userID), redis.Z{Score: float64(i), Member: h.ID})
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListActive(ctx context.Context, userID int64, now time.Time) ([]model.Hook, error) {
	hooks, err := s.loadHooks(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]model.Hook, 0, len(hooks))
	for _, h := range hooks {
		if h.ActiveAt(now) {
			active = append(active, h)
		}
	}
	return active, nil
}

func (s *RedisStore) ListAll(ctx context.Context, userID int64) ([]model.Hook, error) {
	return s.loadHooks(ctx, userID)
}

// Reconcile stages the batch against an in-memory copy of the user's
// hooks, then commits the result in one transactional pipeline. Updates
// and deletions see hooks added earlier in the same batch.
func (s *RedisStore) Reconcile(ctx context.Context, userID int64, batch MutationBatch) error {
	hooks, err := s.loadHooks(ctx, userID)
	if err != nil {
		return fmt.Errorf("загрузка хуков: %w", err)
	}

	hooks = append(hooks, batch.Additions...)

	for _, u := range batch.Updates {
		idx := indexOfText(hooks, u.OldText)
		if idx == -1 {
			// Target text already changed or never existed, skip.
			continue
		}
		hooks[idx].Text = u.NewText
		hooks[idx].ExpiresAt = u.ExpiresAt
	}

	for _, text := range batch.Deletions {
		idx := indexOfText(hooks, text)
		if idx == -1 {
			continue
		}
		hooks = append(hooks[:idx], hooks[idx+1:]...)
	}

	return s.storeHooks(ctx, userID, hooks)
}

func indexOfText(hooks []model.Hook, text string) int {
	for i, h := range hooks {
		if h.Text == text {
			return i
		}
	}
	return -1
}

func (s *RedisStore) DeleteAllHooks(ctx context.Context, userID int64) (int, error) {
	n, err := s.client.ZCard(ctx, s.orderKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	if err := s.client.Del(ctx, s.hooksKey(userID), s.orderKey(userID)).Err(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// PurgeExpired walks all per-user hook hashes and drops expired entries.
func (s *RedisStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	var removed int

	iter := s.client.Scan(ctx, 0, s.prefix+"hooks:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		userID, err := strconv.ParseInt(strings.TrimPrefix(key, s.prefix+"hooks:"), 10, 64)
		if err != nil {
			continue
		}

		hooks, err := s.loadHooks(ctx, userID)
		if err != nil {
			return removed, err
		}

		kept := make([]model.Hook, 0, len(hooks))
		for _, h := range hooks {
			if h.ActiveAt(now) {
				kept = append(kept, h)
			}
		}
		if len(kept) == len(hooks) {
			continue
		}

		if err := s.storeHooks(ctx, userID, kept); err != nil {
			return removed, err
		}
		removed += len(hooks) - len(kept)
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (s *RedisStore) Counts(ctx context.Context, userID int64, now time.Time) (int, int, error) {
	hooks, err := s.loadHooks(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	active := 0
	for _, h := range hooks {
		if h.ActiveAt(now) {
			active++
		}
	}
	return len(hooks), active, nil
}

func (s *RedisStore) AppendPersonality(ctx context.Context, rec model.PersonalityRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := s.globalPersonalityKey()
	if rec.UserID != nil {
		key = s.personalityKey(*rec.UserID)
	}
	return s.client.LPush(ctx, key, data).Err()
}

func (s *RedisStore) LatestPersonality(ctx context.Context, userID int64) (*model.PersonalityRecord, error) {
	return s.latestRecord(ctx, s.personalityKey(userID))
}

func (s *RedisStore) LatestGlobalPersonality(ctx context.Context) (*model.PersonalityRecord, error) {
	return s.latestRecord(ctx, s.globalPersonalityKey())
}

func (s *RedisStore) latestRecord(ctx context.Context, key string) (*model.PersonalityRecord, error) {
	raw, err := s.client.LIndex(ctx, key, 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.PersonalityRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
