package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/config"
)

const defaultRedisPrefix = "shopper:journey:"

// RedisStore is a Redis-based implementation of Store.
// Suitable for distributed production deployments.
// Journeys are stored as JSON strings with sorted sets for indexing.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisStore wraps an existing client. ttl <= 0 keeps journeys forever.
func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger.With(zap.String("component", "redis_store")),
	}
}

// OpenRedisStore dials Redis and verifies the connection.
func OpenRedisStore(ctx context.Context, cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStore(client, cfg.KeyPrefix, ttl, logger), nil
}

// dataKey returns the Redis key for a journey document
func (s *RedisStore) dataKey(id string) string {
	return s.keyPrefix + "data:" + id
}

// statusKey returns the Redis key for a status index
func (s *RedisStore) statusKey(status journey.Status) string {
	return s.keyPrefix + "status:" + string(status)
}

// allKey returns the Redis key for the all-journeys index
func (s *RedisStore) allKey() string {
	return s.keyPrefix + "all"
}

// Save persists a journey and updates the indexes atomically.
func (s *RedisStore) Save(ctx context.Context, j *journey.Journey) error {
	if err := validate(j); err != nil {
		return err
	}
	data, err := encode(j)
	if err != nil {
		return err
	}

	// Previous status, for index cleanup
	old, err := s.Get(ctx, j.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	score := float64(j.StartedAt.UnixNano())
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(j.ID), data, s.ttl)
	if old != nil && old.Status != j.Status {
		pipe.ZRem(ctx, s.statusKey(old.Status), j.ID)
	}
	pipe.ZAdd(ctx, s.statusKey(j.Status), redis.Z{Score: score, Member: j.ID})
	pipe.ZAdd(ctx, s.allKey(), redis.Z{Score: score, Member: j.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a journey by ID
func (s *RedisStore) Get(ctx context.Context, id string) (*journey.Journey, error) {
	data, err := s.client.Get(ctx, s.dataKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// List reads the index newest first and drops entries whose document expired.
func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*journey.Journey, error) {
	index := s.allKey()
	if filter.Status != "" {
		index = s.statusKey(filter.Status)
	}

	ids, err := s.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*journey.Journey{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.dataKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*journey.Journey, 0, len(ids))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		j, err := decode([]byte(raw))
		if err != nil {
			s.logger.Warn("skipping undecodable journey", zap.String("journey_id", ids[i]), zap.Error(err))
			continue
		}
		result = append(result, j)
	}
	if len(stale) > 0 {
		s.dropFromIndexes(ctx, stale)
	}

	sortJourneys(result)
	return page(result, filter), nil
}

func (s *RedisStore) dropFromIndexes(ctx context.Context, ids []any) {
	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, s.allKey(), ids...)
	for _, st := range []journey.Status{journey.StatusRunning, journey.StatusFinished, journey.StatusAborted} {
		pipe.ZRem(ctx, s.statusKey(st), ids...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("failed to prune expired index entries", zap.Error(err))
	}
}

// Delete removes a journey and its index entries
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	old, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.dataKey(id))
	pipe.ZRem(ctx, s.allKey(), id)
	pipe.ZRem(ctx, s.statusKey(old.Status), id)
	_, err = pipe.Exec(ctx)
	return err
}

// Ping checks if the store is healthy
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
