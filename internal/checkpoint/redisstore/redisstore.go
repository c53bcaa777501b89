// Package redisstore persists checkpoints in Redis: each session keeps
// a list of JSON-encoded records, newest at the tail.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/checkpoint"
)

const keyPrefix = "questor:checkpoints:"

type Store struct {
	client *redis.Client
}

// Conn opens and pings a Redis connection from config.
func Conn(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		DialTimeout: cfg.Timeout,
		Password:    cfg.Password,
		DB:          cfg.DB,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Save(ctx context.Context, sessionID string, state []byte, nextNode string) error {
	rec := checkpoint.Record{
		SessionID: sessionID,
		State:     state,
		NextNode:  nextNode,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, keyPrefix+sessionID, data).Err()
}

func (s *Store) Load(ctx context.Context, sessionID string) (checkpoint.Record, error) {
	val, err := s.client.LIndex(ctx, keyPrefix+sessionID, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return checkpoint.Record{}, checkpoint.ErrNotFound
		}
		return checkpoint.Record{}, err
	}
	var rec checkpoint.Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return checkpoint.Record{}, err
	}
	return rec, nil
}

func (s *Store) History(ctx context.Context, sessionID string) ([]checkpoint.Record, error) {
	vals, err := s.client.LRange(ctx, keyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	recs := make([]checkpoint.Record, 0, len(vals))
	for _, v := range vals {
		var rec checkpoint.Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
