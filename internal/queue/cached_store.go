package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const cacheKeyPrefix = "equeue:queue:"

func cacheKey(subjectID uint) string {
	return cacheKeyPrefix + strconv.FormatUint(uint64(subjectID), 10)
}

// CachedStore ставит кэш Redis (write-through) перед другим Store.
// Источник истины внутреннее хранилище: сохранение успешно, как только его
// принял inner, сбои кэша только логируются.
type CachedStore struct {
	inner  Store
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(inner Store, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (s *CachedStore) Load(ctx context.Context, subjectID uint) ([]Entry, error) {
	key := cacheKey(subjectID)

	cached, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var entries []Entry
		if err := json.Unmarshal([]byte(cached), &entries); err == nil {
			return entries, nil
		}
		s.logger.Warn("discarding corrupt cached queue", "subject_id", subjectID)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("queue cache read failed", "subject_id", subjectID, "error", err)
	}

	entries, err := s.inner.Load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	s.put(ctx, subjectID, entries)
	return entries, nil
}

func (s *CachedStore) Save(ctx context.Context, subjectID uint, entries []Entry) error {
	if err := s.inner.Save(ctx, subjectID, entries); err != nil {
		// Сбрасываем копию в кэше, следующий Load пойдёт во внутреннее хранилище.
		if delErr := s.client.Del(ctx, cacheKey(subjectID)).Err(); delErr != nil {
			s.logger.Warn("queue cache invalidate failed", "subject_id", subjectID, "error", delErr)
		}
		return err
	}
	s.put(ctx, subjectID, entries)
	return nil
}

func (s *CachedStore) put(ctx context.Context, subjectID uint, entries []Entry) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		s.logger.Error("queue cache encode failed", "subject_id", subjectID, "error", err)
		return
	}
	if err := s.client.Set(ctx, cacheKey(subjectID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("queue cache write failed", "subject_id", subjectID, "error", err)
	}
}
