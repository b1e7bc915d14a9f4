package app

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

func stubSession(code string, lastActive time.Time) *Session {
	tpl := domain.QuizTemplate{
		ID:        "tpl",
		Title:     "t",
		Questions: []domain.Question{{Prompt: "p", Answer: "a"}},
	}
	s := newSession(code, tpl, lastActive)
	return s
}

func TestRegistryPutRejectsDuplicateCode(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	if !r.Put(stubSession("AAAAAA", now)) {
		t.Fatalf("first Put failed")
	}
	if r.Put(stubSession("AAAAAA", now)) {
		t.Fatalf("duplicate code accepted")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	r.Delete("AAAAAA")
	if _, ok := r.Get("AAAAAA"); ok {
		t.Fatalf("session survived Delete")
	}
}

func TestRegistryIdle(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Put(stubSession("OLDOLD", now.Add(-time.Hour)))
	r.Put(stubSession("FRESH2", now))

	idle := r.Idle(now.Add(-30 * time.Minute))
	if len(idle) != 1 || idle[0].Code() != "OLDOLD" {
		t.Fatalf("idle = %v, want just OLDOLD", idle)
	}
}

func TestRoomCodeShape(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		code := newRoomCode(rnd)
		if len(code) != 6 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(roomCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		// The alphabet drops glyphs players confuse over voice or video.
		if strings.ContainsAny(code, "01OIL") {
			t.Fatalf("code %q contains an ambiguous glyph", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 990 {
		t.Fatalf("only %d distinct codes out of 1000", len(seen))
	}
}
