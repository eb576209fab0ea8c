// Package cache keeps the latest scored report in Redis for fast per-bill reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dietscore/internal/scoring"
)

var ErrNotFound = errors.New("not found")

const defaultPrefix = "report:"

// RedisStore writes one key per bill plus the digest of the report they came from.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: defaultPrefix,
	}
}

func (s *RedisStore) digestKey() string { return s.prefix + "digest" }
func (s *RedisStore) indexKey() string  { return s.prefix + "bills" }

func (s *RedisStore) billKey(billID int64) string {
	return s.prefix + "bill:" + strconv.FormatInt(billID, 10)
}

// SaveReport replaces the cached report. Bills missing from report are removed.
func (s *RedisStore) SaveReport(ctx context.Context, digest string, report scoring.Report) error {
	previous, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list cached bills: %w", err)
	}

	current := make(map[string][]byte, len(report))
	for _, bill := range report {
		data, err := json.Marshal(bill)
		if err != nil {
			return fmt.Errorf("marshal bill %d: %w", bill.BillID, err)
		}
		current[strconv.FormatInt(bill.BillID, 10)] = data
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range previous {
			if _, ok := current[id]; !ok {
				pipe.Del(ctx, s.prefix+"bill:"+id)
			}
		}
		pipe.Del(ctx, s.indexKey())
		for id, data := range current {
			pipe.Set(ctx, s.prefix+"bill:"+id, data, 0)
			pipe.SAdd(ctx, s.indexKey(), id)
		}
		pipe.Set(ctx, s.digestKey(), digest, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Digest returns the digest of the cached report.
func (s *RedisStore) Digest(ctx context.Context) (string, error) {
	digest, err := s.client.Get(ctx, s.digestKey()).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get report digest: %w", err)
	}
	return digest, nil
}

// Load returns one cached bill.
func (s *RedisStore) Load(ctx context.Context, billID int64) (scoring.BillScore, error) {
	data, err := s.client.Get(ctx, s.billKey(billID)).Bytes()
	if err == redis.Nil {
		return scoring.BillScore{}, ErrNotFound
	}
	if err != nil {
		return scoring.BillScore{}, fmt.Errorf("get bill %d: %w", billID, err)
	}

	var bill scoring.BillScore
	if err := json.Unmarshal(data, &bill); err != nil {
		return scoring.BillScore{}, fmt.Errorf("unmarshal bill %d: %w", billID, err)
	}
	return bill, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
