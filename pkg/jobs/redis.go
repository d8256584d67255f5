package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/distkit/conveyor/pkg/clock"
)

const redisKeyPrefix = "job:"

// RedisStore keeps job records in redis so the submitting and replaying
// processes share state. Records are JSON values under "job:<id>".
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	clock  clock.Clock
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithTTL expires records after d; zero keeps them forever.
func WithTTL(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = d
	}
}

// WithRedisClock sets the clock used for record timestamps.
func WithRedisClock(c clock.Clock) RedisStoreOption {
	return func(s *RedisStore) {
		s.clock = c
	}
}

// NewRedisStore creates a redis-backed job store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		clock:  clock.NewReal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveJob creates or updates a job record
func (s *RedisStore) SaveJob(ctx context.Context, rec Record) error {
	rec.UpdatedAt = s.clock.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+rec.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", rec.ID, err)
	}
	return nil
}

// GetJob retrieves a job record, or ErrJobNotFound
func (s *RedisStore) GetJob(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &rec, nil
}
