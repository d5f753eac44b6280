package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/openweather-collector/internal/weather"
)

const keyPrefix = "snapshots:"

// RedisStore keeps snapshots in one sorted set per provider, scored by the
// snapshot timestamp in milliseconds. Members are JSON documents, so numbers
// read back as float64 and timestamps inside variables as RFC 3339 strings.
type RedisStore struct {
	client     *redis.Client
	maxHistory int
	maxAge     time.Duration
	now        func() time.Time
}

var _ weather.Store = (*RedisStore)(nil)

// NewRedisStore wraps client. Limits <= 0 are not applied.
func NewRedisStore(client *redis.Client, maxHistory int, maxAge time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// NewRedisClient builds a client with the pool settings used across services.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SaveSnapshot(ctx context.Context, snapshot weather.Snapshot) error {
	member, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := keyPrefix + snapshot.Provider

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score(snapshot.Timestamp), Member: member})
	if s.maxHistory > 0 {
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-s.maxHistory-1))
	}
	if s.maxAge > 0 {
		cutoff := score(s.now().Add(-s.maxAge))
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatFloat(cutoff, 'f', -1, 64))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, provider string) (weather.Snapshot, error) {
	members, err := s.client.ZRevRange(ctx, keyPrefix+provider, 0, 0).Result()
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	if len(members) == 0 {
		return weather.Snapshot{}, ErrNotFound
	}
	return decode(members[0])
}

func (s *RedisStore) Range(ctx context.Context, provider string, from, to time.Time) ([]weather.Snapshot, error) {
	members, err := s.client.ZRangeByScore(ctx, keyPrefix+provider, &redis.ZRangeBy{
		Min: strconv.FormatFloat(score(from), 'f', -1, 64),
		Max: strconv.FormatFloat(score(to), 'f', -1, 64),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("snapshot range: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}

	out := make([]weather.Snapshot, 0, len(members))
	for _, m := range members {
		snap, err := decode(m)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func decode(member string) (weather.Snapshot, error) {
	var snap weather.Snapshot
	if err := json.Unmarshal([]byte(member), &snap); err != nil {
		return weather.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
