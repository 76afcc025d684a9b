package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// TipStore implements ports.TipStore using one Redis SET of used wells per rack.
// Several robots sharing a Redis see the same tip bookkeeping.
type TipStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*TipStore)

// WithTTL sets the expiration for rack entries.
func WithTTL(ttl time.Duration) Option {
	return func(s *TipStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for racks.
func WithPrefix(prefix string) Option {
	return func(s *TipStore) {
		s.prefix = prefix
	}
}

// New creates a new Redis tip store with options.
func New(address, password string, db int, opts ...Option) *TipStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis tip store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *TipStore {
	store := &TipStore{
		client: client,
		prefix: "aliquot:tips:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *TipStore) key(rackID string) string {
	return s.prefix + rackID
}

// Used returns the used wells of a rack.
func (s *TipStore) Used(ctx context.Context, rackID string) (map[string]bool, error) {
	members, err := s.client.SMembers(ctx, s.key(rackID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tips from redis: %w", err)
	}
	used := make(map[string]bool, len(members))
	for _, m := range members {
		used[m] = true
	}
	return used, nil
}

// MarkUsed adds wells to the rack's used set.
func (s *TipStore) MarkUsed(ctx context.Context, rackID string, wells []string) error {
	if len(wells) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.key(rackID), toMembers(wells)...)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(rackID), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark tips used in redis: %w", err)
	}
	return nil
}

// MarkAvailable removes wells from the rack's used set.
func (s *TipStore) MarkAvailable(ctx context.Context, rackID string, wells []string) error {
	if len(wells) == 0 {
		return nil
	}
	if err := s.client.SRem(ctx, s.key(rackID), toMembers(wells)...).Err(); err != nil {
		return fmt.Errorf("failed to mark tips available in redis: %w", err)
	}
	return nil
}

// Reset drops the rack's used set.
func (s *TipStore) Reset(ctx context.Context, rackID string) error {
	return s.client.Del(ctx, s.key(rackID)).Err()
}

// Close closes the redis client.
func (s *TipStore) Close() error {
	return s.client.Close()
}

func toMembers(wells []string) []any {
	members := make([]any, len(wells))
	for i, w := range wells {
		members[i] = w
	}
	return members
}
