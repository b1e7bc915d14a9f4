package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vityaded/Kahoot-clone/internal/domain"
	"github.com/vityaded/Kahoot-clone/internal/evaluate"
)

// TemplateStore abstracts where quiz templates live (memory, Redis-cached
// Postgres, etc).
type TemplateStore interface {
	Create(ctx context.Context, tpl domain.QuizTemplate) error
	Get(ctx context.Context, id string) (domain.QuizTemplate, error)
}

// SnapshotStore is the persistence boundary for live sessions. Saves are
// best-effort: the engine logs failures and carries on.
type SnapshotStore interface {
	Save(ctx context.Context, snap domain.SessionSnapshot) error
	Load(ctx context.Context, roomCode string) (domain.SessionSnapshot, error)
	LoadAll(ctx context.Context) ([]domain.SessionSnapshot, error)
	Delete(ctx context.Context, roomCode string) error
}

// Settings are the engine's timing knobs.
type Settings struct {
	QuestionSeconds  int           // default per-question duration
	PauseSeconds     int           // scoring pause between questions
	CountdownSeconds int           // lobby countdown before auto-start
	DisconnectGrace  time.Duration // how long a disconnected participant is kept
	IdleTTL          time.Duration // registry GC for abandoned rooms
	ConfirmThreshold int           // runs above this size need a confirmed config
}

// DefaultSettings are the stock game timings.
func DefaultSettings() Settings {
	return Settings{
		QuestionSeconds:  20,
		PauseSeconds:     8,
		CountdownSeconds: 15,
		DisconnectGrace:  20 * time.Minute,
		IdleTTL:          30 * time.Minute,
		ConfirmThreshold: 10,
	}
}

// Engine drives every session's state machine. Sessions are independent;
// each command locks exactly one session for a short synchronous step. The
// only cross-session state is the registry and the evaluator's caches.
type Engine struct {
	registry  *Registry
	templates TemplateStore
	snapshots SnapshotStore
	eval      *evaluate.Evaluator
	sched     Scheduler
	now       func() time.Time
	cfg       Settings
	log       zerolog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithScheduler swaps the timer facility (tests drive time by hand).
func WithScheduler(s Scheduler) EngineOption {
	return func(e *Engine) { e.sched = s }
}

// WithClock injects a deterministic clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithSettings(cfg Settings) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

func WithEngineLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithRand seeds room-code and shuffle randomness deterministically.
func WithRand(rnd *rand.Rand) EngineOption {
	return func(e *Engine) { e.rnd = rnd }
}

func NewEngine(templates TemplateStore, snapshots SnapshotStore, eval *evaluate.Evaluator, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:  NewRegistry(),
		templates: templates,
		snapshots: snapshots,
		eval:      eval,
		sched:     WallScheduler{},
		now:       time.Now,
		cfg:       DefaultSettings(),
		log:       zerolog.Nop(),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the session table for infrastructure (tests, janitor).
func (e *Engine) Registry() *Registry { return e.registry }

// CreateQuiz validates and stores a template, spawns a session for it, and
// returns the room code players enter.
func (e *Engine) CreateQuiz(ctx context.Context, title string, questionSeconds int, questions []domain.Question) (string, error) {
	if title == "" {
		return "", domain.ErrEmptyTitle
	}
	if len(questions) == 0 {
		return "", domain.ErrNoQuestions
	}
	for _, q := range questions {
		if q.Prompt == "" || q.Answer == "" {
			return "", domain.ErrNoQuestions
		}
	}
	if questionSeconds == 0 {
		questionSeconds = e.cfg.QuestionSeconds
	}
	if questionSeconds < 5 || questionSeconds > 300 {
		return "", domain.ErrBadDuration
	}

	tpl := domain.QuizTemplate{
		ID:              uuid.NewString(),
		Title:           title,
		QuestionSeconds: questionSeconds,
		Questions:       questions,
	}
	if err := e.templates.Create(ctx, tpl); err != nil {
		return "", err
	}

	sess := e.spawnSession(tpl)
	e.saveSnapshot(sess)
	return sess.Code(), nil
}

// spawnSession registers a fresh session under an unused room code.
func (e *Engine) spawnSession(tpl domain.QuizTemplate) *Session {
	for {
		e.rndMu.Lock()
		code := newRoomCode(e.rnd)
		e.rndMu.Unlock()
		sess := newSession(code, tpl, e.now())
		if e.registry.Put(sess) {
			return sess
		}
	}
}

// ClaimHost binds a connection as the session's host. Reclaiming after a
// host disconnect re-arms whatever timer the phase needs and hands back the
// full state so a reconnecting host resumes instead of starting over.
func (e *Engine) ClaimHost(ctx context.Context, roomCode, connID string) (SessionView, error) {
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.hostConnID != "" && sess.hostConnID != connID {
		return SessionView{}, domain.ErrHostConflict
	}
	sess.hostConnID = connID
	sess.lastActive = e.now()
	e.resumeTimersLocked(sess)
	return e.viewLocked(sess), nil
}

// Join adds (or reconnects) a participant. An empty playerID mints a fresh
// persistent identity. The first connected join of an idle lobby arms the
// countdown.
func (e *Engine) Join(ctx context.Context, roomCode, connID, displayName, playerID string) (string, SessionView, error) {
	if displayName == "" {
		return "", SessionView{}, domain.ErrEmptyDisplayName
	}
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return "", SessionView{}, domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	now := e.now()
	if playerID == "" {
		playerID = uuid.NewString()
	}

	if p, ok := sess.participants[playerID]; ok {
		e.rebindLocked(p, connID, now)
		p.displayName = displayName
	} else {
		sess.participants[playerID] = &participant{
			playerID:    playerID,
			connID:      connID,
			displayName: displayName,
			connected:   true,
			lastSeen:    now,
		}
	}
	sess.lastActive = now

	if sess.phase == domain.PhaseLobby && sess.currentIndex == -1 &&
		sess.countdownTimer == nil && sess.connectedCount() == 1 {
		e.startCountdownLocked(sess, e.cfg.CountdownSeconds)
	}

	sess.broadcastLocked(domain.Event{Type: domain.EventLeaderboard, Payload: sess.leaderboardLocked(now)})
	view := e.viewLocked(sess)
	snap := sess.snapshotLocked(now)
	sess.mu.Unlock()

	e.persist(snap)
	return playerID, view, nil
}

// Reconnect restores a participant by persistent identity. With an empty
// room code every live session is scanned.
func (e *Engine) Reconnect(ctx context.Context, playerID, roomCode, connID string) (SessionView, error) {
	var sess *Session
	if roomCode != "" {
		s, ok := e.registry.Get(roomCode)
		if !ok {
			return SessionView{}, domain.ErrReconnectFailed
		}
		sess = s
	} else {
		sess = e.findByPlayer(playerID)
		if sess == nil {
			return SessionView{}, domain.ErrReconnectFailed
		}
	}

	sess.mu.Lock()
	p, ok := sess.participants[playerID]
	if !ok {
		sess.mu.Unlock()
		return SessionView{}, domain.ErrReconnectFailed
	}
	now := e.now()
	e.rebindLocked(p, connID, now)
	sess.lastActive = now
	sess.broadcastLocked(domain.Event{Type: domain.EventLeaderboard, Payload: sess.leaderboardLocked(now)})
	view := e.viewLocked(sess)
	snap := sess.snapshotLocked(now)
	sess.mu.Unlock()

	e.persist(snap)
	return view, nil
}

func (e *Engine) rebindLocked(p *participant, connID string, now time.Time) {
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	p.connID = connID
	p.connected = true
	p.disconnectedAt = time.Time{}
	p.lastSeen = now
}

func (e *Engine) findByPlayer(playerID string) *Session {
	e.registry.mu.RLock()
	defer e.registry.mu.RUnlock()
	for _, s := range e.registry.sessions {
		s.mu.Lock()
		_, ok := s.participants[playerID]
		s.mu.Unlock()
		if ok {
			return s
		}
	}
	return nil
}

// Disconnect handles a dropped transport connection. A host drop clears
// timers, announces termination, and releases the binding so a new host
// connection can reclaim the room. A participant drop starts the grace
// timer; identity and score survive until it fires.
func (e *Engine) Disconnect(roomCode, connID string) {
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return
	}

	sess.mu.Lock()
	now := e.now()

	if sess.hostConnID == connID {
		sess.hostConnID = ""
		sess.cancelTimersLocked()
		sess.broadcastLocked(domain.Event{
			Type:    domain.EventQuizTerminated,
			Payload: domain.TerminatedPayload{Reason: "host disconnected"},
		})
		sess.lastActive = now
		snap := sess.snapshotLocked(now)
		sess.mu.Unlock()
		e.persist(snap)
		return
	}

	p := sess.findByConn(connID)
	if p == nil {
		sess.mu.Unlock()
		return
	}
	p.connected = false
	p.disconnectedAt = now
	p.lastSeen = now
	playerID := p.playerID
	p.graceTimer = e.sched.Schedule(e.cfg.DisconnectGrace, func() {
		e.onGraceExpired(roomCode, playerID)
	})
	sess.broadcastLocked(domain.Event{Type: domain.EventLeaderboard, Payload: sess.leaderboardLocked(now)})
	sess.lastActive = now
	snap := sess.snapshotLocked(now)
	sess.mu.Unlock()

	e.persist(snap)
}

func (e *Engine) onGraceExpired(roomCode, playerID string) {
	defer e.recoverTimer("disconnect-grace", roomCode)

	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return
	}
	sess.mu.Lock()
	p, ok := sess.participants[playerID]
	if !ok || p.connected {
		sess.mu.Unlock()
		return
	}
	delete(sess.participants, playerID)
	delete(sess.answered, playerID)
	delete(sess.pendingEval, playerID)
	now := e.now()
	sess.broadcastLocked(domain.Event{Type: domain.EventLeaderboard, Payload: sess.leaderboardLocked(now)})
	snap := sess.snapshotLocked(now)
	sess.mu.Unlock()

	e.persist(snap)
}

// Subscribe attaches a listener to a room's event stream. The caller must
// invoke cancel to avoid leaking the channel.
func (e *Engine) Subscribe(roomCode string) (<-chan domain.Event, func(), error) {
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	sess.mu.Lock()
	ch := sess.subscribeLocked()
	sess.mu.Unlock()

	cancel := func() {
		sess.mu.Lock()
		sess.unsubscribeLocked(ch)
		sess.mu.Unlock()
	}
	return ch, cancel, nil
}

// DeleteSession removes a room outright (owning template deleted). Everyone
// still connected is told the room is gone.
func (e *Engine) DeleteSession(ctx context.Context, roomCode string) {
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return
	}
	sess.mu.Lock()
	sess.cancelTimersLocked()
	sess.broadcastLocked(domain.Event{
		Type:    domain.EventQuizTerminated,
		Payload: domain.TerminatedPayload{Reason: "room deleted"},
	})
	sess.mu.Unlock()

	e.registry.Delete(roomCode)
	if err := e.snapshots.Delete(ctx, roomCode); err != nil {
		e.log.Warn().Err(err).Str("room", roomCode).Msg("delete snapshot failed")
	}
}

// StartJanitor garbage-collects rooms idle past the configured TTL until
// ctx is cancelled.
func (e *Engine) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := e.now().Add(-e.cfg.IdleTTL)
				for _, sess := range e.registry.Idle(cutoff) {
					e.log.Info().Str("room", sess.Code()).Msg("collecting idle session")
					e.DeleteSession(ctx, sess.Code())
				}
			}
		}
	}()
}

// persist writes a snapshot best-effort; persistence failures never fail a
// command.
func (e *Engine) persist(snap domain.SessionSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.snapshots.Save(ctx, snap); err != nil {
		e.log.Warn().Err(err).Str("room", snap.RoomCode).Msg("snapshot save failed")
	}
}

func (e *Engine) saveSnapshot(sess *Session) {
	sess.mu.Lock()
	snap := sess.snapshotLocked(e.now())
	sess.mu.Unlock()
	e.persist(snap)
}

// recoverTimer keeps a panicking timer callback from taking the process
// down; the session stays in its last consistent phase and a host action
// can recover it.
func (e *Engine) recoverTimer(kind, roomCode string) {
	if r := recover(); r != nil {
		e.log.Error().Str("timer", kind).Str("room", roomCode).Any("panic", r).Msg("timer callback panicked")
	}
}

// Rehydrate rebuilds sessions from the last persisted snapshots, deriving
// remaining time from timestamps. Called once on process start.
func (e *Engine) Rehydrate(ctx context.Context) error {
	snaps, err := e.snapshots.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		tpl, err := e.templates.Get(ctx, snap.TemplateID)
		if err != nil {
			e.log.Warn().Err(err).Str("room", snap.RoomCode).Msg("skipping snapshot, template missing")
			continue
		}
		sess := newSession(snap.RoomCode, tpl, e.now())
		sess.mu.Lock()
		sess.phase = snap.Phase
		sess.runCfg = snap.Run
		sess.currentIndex = snap.CurrentIndex
		sess.questionSeconds = snap.QuestionSeconds
		sess.questionStartedAt = snap.QuestionStartedAt
		if len(snap.RunOrder) > 0 {
			sess.runOrder = append([]int(nil), snap.RunOrder...)
			sess.run = sess.run[:0]
			for _, idx := range snap.RunOrder {
				if idx >= 0 && idx < len(tpl.Questions) {
					sess.run = append(sess.run, tpl.Questions[idx])
				}
			}
		}
		for _, ps := range snap.Participants {
			sess.participants[ps.PlayerID] = &participant{
				playerID:    ps.PlayerID,
				displayName: ps.DisplayName,
				score:       ps.Score,
				correct:     ps.Correct,
				partial:     ps.Partial,
				answered:    ps.Answered,
				connected:   false, // connections do not survive a restart
				lastSeen:    ps.LastSeen,
			}
		}
		e.resumeTimersLocked(sess)
		sess.mu.Unlock()

		if !e.registry.Put(sess) {
			e.log.Warn().Str("room", snap.RoomCode).Msg("room code already live, snapshot dropped")
		}
	}
	return nil
}
