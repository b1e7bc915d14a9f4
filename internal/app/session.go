package app

import (
	"sort"
	"sync"
	"time"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

// participant is the engine's mutable view of a roster member. Identity is
// the persistent playerID; the connection id is transient and rebound on
// reconnect.
type participant struct {
	playerID    string
	connID      string
	displayName string

	score    int
	correct  int
	partial  int
	answered int

	connected      bool
	disconnectedAt time.Time
	graceTimer     Timer
	lastSeen       time.Time
}

// Session is one live quiz room: the aggregate root every engine command
// mutates. All fields are guarded by mu; mutations are short synchronous
// steps, so no two commands interleave inside one session. At most one of
// the countdown, question, and pause timers is armed at a time, with
// timerEpoch invalidating anything superseded.
type Session struct {
	mu sync.Mutex

	code       string
	templateID string
	title      string

	phase      domain.Phase
	hostConnID string

	template []domain.Question
	run      []domain.Question
	runOrder []int // indexes into template, parallel to run
	runCfg   domain.RunConfig

	currentIndex      int // -1 before the first question
	questionSeconds   int
	questionStartedAt time.Time
	answered          map[string]struct{}
	pendingEval       map[string]struct{}

	participants map[string]*participant

	timerEpoch         uint64
	questionTimer      Timer
	pauseTimer         Timer
	countdownTimer     Timer
	countdownRemaining int

	subscribers map[chan domain.Event]struct{}
	lastActive  time.Time
}

func newSession(code string, tpl domain.QuizTemplate, now time.Time) *Session {
	run := make([]domain.Question, len(tpl.Questions))
	copy(run, tpl.Questions)
	order := make([]int, len(run))
	for i := range order {
		order[i] = i
	}
	return &Session{
		code:            code,
		templateID:      tpl.ID,
		title:           tpl.Title,
		phase:           domain.PhaseLobby,
		template:        tpl.Questions,
		run:             run,
		runOrder:        order,
		runCfg:          domain.RunConfig{Count: len(tpl.Questions)},
		currentIndex:    -1,
		questionSeconds: tpl.QuestionSeconds,
		answered:        map[string]struct{}{},
		pendingEval:     map[string]struct{}{},
		participants:    map[string]*participant{},
		subscribers:     map[chan domain.Event]struct{}{},
		lastActive:      now,
	}
}

// Code returns the room code.
func (s *Session) Code() string { return s.code }

func (s *Session) currentQuestion() (domain.Question, bool) {
	if s.currentIndex < 0 || s.currentIndex >= len(s.run) {
		return domain.Question{}, false
	}
	return s.run[s.currentIndex], true
}

// connectedCount counts participants eligible for the fast-forward check.
func (s *Session) connectedCount() int {
	n := 0
	for _, p := range s.participants {
		if p.connected {
			n++
		}
	}
	return n
}

// allConnectedAnswered reports whether every currently connected participant
// has answered the active question. Disconnected participants never stall
// the round.
func (s *Session) allConnectedAnswered() bool {
	any := false
	for _, p := range s.participants {
		if !p.connected {
			continue
		}
		any = true
		if _, ok := s.answered[p.playerID]; !ok {
			return false
		}
	}
	return any
}

func (s *Session) findByConn(connID string) *participant {
	for _, p := range s.participants {
		if p.connected && p.connID == connID {
			return p
		}
	}
	return nil
}

// cancelTimersLocked stops every armed timer and bumps the epoch so a
// callback that already escaped Stop becomes a no-op.
func (s *Session) cancelTimersLocked() {
	s.timerEpoch++
	if s.questionTimer != nil {
		s.questionTimer.Stop()
		s.questionTimer = nil
	}
	if s.pauseTimer != nil {
		s.pauseTimer.Stop()
		s.pauseTimer = nil
	}
	if s.countdownTimer != nil {
		s.countdownTimer.Stop()
		s.countdownTimer = nil
		s.countdownRemaining = 0
	}
}

func (s *Session) leaderboardLocked(now time.Time) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.participants))
	for _, p := range s.participants {
		accuracy := 0.0
		if p.answered > 0 {
			accuracy = float64(p.correct+p.partial) / float64(p.answered)
		}
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:    p.playerID,
			DisplayName: p.displayName,
			Score:       p.score,
			Accuracy:    accuracy,
			Connected:   p.connected,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	return domain.Leaderboard{RoomCode: s.code, Entries: entries, UpdatedAt: now}
}

// broadcastLocked fans an event out to every room subscriber. A subscriber
// whose buffer is full loses its oldest event rather than blocking the room.
func (s *Session) broadcastLocked(ev domain.Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (s *Session) subscribeLocked() chan domain.Event {
	ch := make(chan domain.Event, 16)
	s.subscribers[ch] = struct{}{}
	return ch
}

func (s *Session) unsubscribeLocked(ch chan domain.Event) {
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) snapshotLocked(now time.Time) domain.SessionSnapshot {
	roster := make([]domain.ParticipantSnapshot, 0, len(s.participants))
	for _, p := range s.participants {
		roster = append(roster, domain.ParticipantSnapshot{
			PlayerID:    p.playerID,
			DisplayName: p.displayName,
			Score:       p.score,
			Correct:     p.correct,
			Partial:     p.partial,
			Answered:    p.answered,
			Connected:   p.connected,
			LastSeen:    p.lastSeen,
		})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].PlayerID < roster[j].PlayerID })
	return domain.SessionSnapshot{
		RoomCode:          s.code,
		TemplateID:        s.templateID,
		Phase:             s.phase,
		Run:               s.runCfg,
		RunOrder:          append([]int(nil), s.runOrder...),
		CurrentIndex:      s.currentIndex,
		QuestionSeconds:   s.questionSeconds,
		QuestionStartedAt: s.questionStartedAt,
		Participants:      roster,
		SavedAt:           now,
	}
}
