// Package redis stores words in a Redis list so several word service
// replicas share one store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// WordStore implements words.Store on a Redis list holding JSON entries.
type WordStore struct {
	client *goredis.Client
	key    string
}

// NewWordStore connects to Redis. The connection is verified lazily; call
// Ping to check it.
func NewWordStore(opts Options) *WordStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &WordStore{client: client, key: opts.Key}
}

// Add appends entry and returns the new total.
func (s *WordStore) Add(ctx context.Context, entry domain.WordEntry) (int, error) {
	data, err := encodeEntry(entry)
	if err != nil {
		return 0, err
	}
	n, err := s.client.RPush(ctx, s.key, data).Result()
	if err != nil {
		return 0, &domain.PersistenceError{Sink: "redis", Err: err}
	}
	return int(n), nil
}

// List returns all entries in insertion order.
func (s *WordStore) List(ctx context.Context) ([]domain.WordEntry, error) {
	items, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, &domain.PersistenceError{Sink: "redis", Err: err}
	}
	out := make([]domain.WordEntry, 0, len(items))
	for _, item := range items {
		entry, err := decodeEntry(item)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// Clear deletes the list and returns how many entries it held. Length and
// delete run in one MULTI so concurrent adds are either counted or kept.
func (s *WordStore) Clear(ctx context.Context) (int, error) {
	var llen *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		llen = pipe.LLen(ctx, s.key)
		pipe.Del(ctx, s.key)
		return nil
	})
	if err != nil {
		return 0, &domain.PersistenceError{Sink: "redis", Err: err}
	}
	return int(llen.Val()), nil
}

// Ping checks the connection.
func (s *WordStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *WordStore) Close() error {
	return s.client.Close()
}

func encodeEntry(entry domain.WordEntry) (string, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode word entry: %w", err)
	}
	return string(data), nil
}

func decodeEntry(item string) (domain.WordEntry, error) {
	var entry domain.WordEntry
	if err := json.Unmarshal([]byte(item), &entry); err != nil {
		return domain.WordEntry{}, &domain.PersistenceError{Sink: "redis", Err: fmt.Errorf("decode word entry: %w", err)}
	}
	return entry, nil
}
