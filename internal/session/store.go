package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSnapshotTTL = 2 * time.Hour

// SnapshotStore persists review snapshots. Writes replace the stored value
// wholesale.
type SnapshotStore interface {
	Write(ctx context.Context, id string, snap Snapshot) error
	Read(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps snapshots in Redis so the review screen survives the quiz
// page transition and gateway restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SnapshotStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return "session:review:" + id
}

// Write replaces the stored snapshot.
func (s *RedisStore) Write(ctx context.Context, id string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key(id), data, s.ttl).Err()
}

// Read returns the stored snapshot, or nil when none exists.
func (s *RedisStore) Read(ctx context.Context, id string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the stored snapshot.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
