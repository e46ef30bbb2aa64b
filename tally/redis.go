// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"fmt"

	"github.com/go-redis/redis"
)

// DefaultKeyPrefix namespaces the per-poll sorted sets.
const DefaultKeyPrefix = "livepoll:tally:"

// RedisStore keeps one sorted set per poll: members are option ids, scores
// are vote counts. ZINCRBY is atomic on the server, so concurrent increments
// never lose updates.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis parses a redis:// URL and checks the server answers PING.
func DialRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Increment(ctx context.Context, pollID, optionID string, delta int64) (int64, error) {
	score, err := s.client.WithContext(ctx).ZIncrBy(s.key(pollID), float64(delta), optionID).Result()
	if err != nil {
		return 0, fmt.Errorf("zincrby %s: %w", pollID, err)
	}
	return int64(score), nil
}

func (s *RedisStore) Snapshot(ctx context.Context, pollID string) (map[string]int64, error) {
	members, err := s.client.WithContext(ctx).ZRangeWithScores(s.key(pollID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %w", pollID, err)
	}

	counts := make(map[string]int64, len(members))
	for _, m := range members {
		optionID, ok := m.Member.(string)
		if !ok {
			continue
		}
		counts[optionID] = int64(m.Score)
	}
	return counts, nil
}

// Reset replaces the poll's sorted set in one MULTI/EXEC transaction.
func (s *RedisStore) Reset(ctx context.Context, pollID string, counts map[string]int64) error {
	key := s.key(pollID)
	_, err := s.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.Del(key)
		if len(counts) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(counts))
		for optionID, n := range counts {
			members = append(members, redis.Z{Score: float64(n), Member: optionID})
		}
		pipe.ZAdd(key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset %s: %w", pollID, err)
	}
	return nil
}

func (s *RedisStore) key(pollID string) string {
	return s.prefix + pollID
}
