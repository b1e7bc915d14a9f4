package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

const snapshotPrefix = "quiz:snapshot:"

// SnapshotStore persists session snapshots as JSON values with a TTL, so a
// cleanly restarted process can rehydrate rooms that were recently alive
// while abandoned rooms age out on their own.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.client.Set(ctx, snapshotPrefix+snap.RoomCode, data, s.ttl).Err()
}

func (s *SnapshotStore) Load(ctx context.Context, roomCode string) (domain.SessionSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotPrefix+roomCode).Bytes()
	if err == redis.Nil {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (s *SnapshotStore) LoadAll(ctx context.Context) ([]domain.SessionSnapshot, error) {
	var snaps []domain.SessionSnapshot
	iter := s.client.Scan(ctx, 0, snapshotPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var snap domain.SessionSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			// Skip entries written by an incompatible version.
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, roomCode string) error {
	return s.client.Del(ctx, snapshotPrefix+roomCode).Err()
}
