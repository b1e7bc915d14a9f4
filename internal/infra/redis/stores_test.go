package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

func testClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := testClient(t)
	store := NewSnapshotStore(client, time.Hour)

	snap := domain.SessionSnapshot{
		RoomCode:        "ABCDEF",
		TemplateID:      "t1",
		Phase:           domain.PhaseQuestion,
		CurrentIndex:    2,
		QuestionSeconds: 20,
		RunOrder:        []int{2, 0, 1},
		Participants: []domain.ParticipantSnapshot{
			{PlayerID: "p1", DisplayName: "Alice", Score: 1375, Correct: 1, Answered: 1},
		},
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:snapshot:ABCDEF") {
		t.Fatalf("snapshot not stored under the expected key")
	}

	got, err := store.Load(ctx, "ABCDEF")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentIndex != 2 || len(got.RunOrder) != 3 || got.Participants[0].Score != 1375 {
		t.Fatalf("got %+v", got)
	}

	if _, err := store.Load(ctx, "NOPE42"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSnapshotStoreLoadAllScansPrefix(t *testing.T) {
	ctx := context.Background()
	mr, client := testClient(t)
	store := NewSnapshotStore(client, time.Hour)

	for _, code := range []string{"ROOM01", "ROOM02", "ROOM03"} {
		if err := store.Save(ctx, domain.SessionSnapshot{RoomCode: code, TemplateID: "t"}); err != nil {
			t.Fatalf("save %s: %v", code, err)
		}
	}
	// Unrelated keys must not leak into the scan.
	mr.Set("quiz:template:t", "{}")

	snaps, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("loadAll: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
}

func TestSnapshotStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := testClient(t)
	store := NewSnapshotStore(client, time.Minute)

	if err := store.Save(ctx, domain.SessionSnapshot{RoomCode: "ABCDEF"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.Load(ctx, "ABCDEF"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound after expiry", err)
	}
}

func TestSnapshotStoreDelete(t *testing.T) {
	ctx := context.Background()
	mr, client := testClient(t)
	store := NewSnapshotStore(client, time.Hour)

	store.Save(ctx, domain.SessionSnapshot{RoomCode: "ABCDEF"})
	if err := store.Delete(ctx, "ABCDEF"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quiz:snapshot:ABCDEF") {
		t.Fatalf("key survived delete")
	}
}

// countingBacking counts cache misses reaching the authoritative store.
type countingBacking struct {
	calls atomic.Int64
	tpl   domain.QuizTemplate
}

func (b *countingBacking) Create(context.Context, domain.QuizTemplate) error { return nil }

func (b *countingBacking) Get(_ context.Context, id string) (domain.QuizTemplate, error) {
	b.calls.Add(1)
	if id != b.tpl.ID {
		return domain.QuizTemplate{}, domain.ErrTemplateNotFound
	}
	return b.tpl, nil
}

func TestTemplateStoreCacheAside(t *testing.T) {
	ctx := context.Background()
	mr, client := testClient(t)

	backing := &countingBacking{tpl: domain.QuizTemplate{
		ID:        "t1",
		Title:     "Capitals",
		Questions: []domain.Question{{Prompt: "p", Answer: "a"}},
	}}
	store := NewTemplateStore(client, backing, time.Hour)

	for i := 0; i < 3; i++ {
		got, err := store.Get(ctx, "t1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if got.Title != "Capitals" {
			t.Fatalf("get %d: got %+v", i, got)
		}
	}
	if n := backing.calls.Load(); n != 1 {
		t.Fatalf("backing hit %d times, want 1 (cache-aside)", n)
	}

	// Cache eviction falls back to the backing store.
	mr.FlushAll()
	if _, err := store.Get(ctx, "t1"); err != nil {
		t.Fatalf("get after flush: %v", err)
	}
	if n := backing.calls.Load(); n != 2 {
		t.Fatalf("backing hit %d times after flush, want 2", n)
	}
}

func TestTemplateStoreCreateWarmsCache(t *testing.T) {
	ctx := context.Background()
	mr, client := testClient(t)

	backing := &countingBacking{tpl: domain.QuizTemplate{ID: "t1"}}
	store := NewTemplateStore(client, backing, time.Hour)

	if err := store.Create(ctx, domain.QuizTemplate{ID: "t2", Title: "Warm"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("quiz:template:t2") {
		t.Fatalf("create did not warm the cache")
	}

	// Served from cache: the backing store never sees the read.
	got, err := store.Get(ctx, "t2")
	if err != nil || got.Title != "Warm" {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if n := backing.calls.Load(); n != 0 {
		t.Fatalf("backing hit %d times, want 0", n)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
}
