package memory

import (
	"context"
	"sync"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

// SnapshotStore is the in-memory implementation of the session persistence
// boundary. Snapshots do not survive a restart; it exists so the engine
// always has a store to talk to.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.SessionSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.SessionSnapshot)}
}

func (s *SnapshotStore) Save(_ context.Context, snap domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.RoomCode] = snap
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, roomCode string) (domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[roomCode]
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return snap, nil
}

func (s *SnapshotStore) LoadAll(_ context.Context) ([]domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := make([]domain.SessionSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *SnapshotStore) Delete(_ context.Context, roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, roomCode)
	return nil
}
