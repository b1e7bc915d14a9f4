package app

import (
	"context"
	"strings"
	"time"

	"github.com/vityaded/Kahoot-clone/internal/domain"
	"github.com/vityaded/Kahoot-clone/internal/evaluate"
)

// StartQuestion is the host command that opens the first question. Runs
// above the confirmation threshold must have their configuration confirmed
// first, so a host cannot accidentally start a 50-question marathon.
func (e *Engine) StartQuestion(ctx context.Context, roomCode, connID string) error {
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.hostConnID != connID {
		sess.mu.Unlock()
		return domain.ErrNotHost
	}
	switch sess.phase {
	case domain.PhaseQuestion:
		sess.mu.Unlock()
		return domain.ErrQuestionActive
	case domain.PhaseScoring:
		sess.mu.Unlock()
		return domain.ErrRunUnderway
	case domain.PhaseFinished:
		sess.mu.Unlock()
		return domain.ErrRunFinished
	}
	if len(sess.run) > e.cfg.ConfirmThreshold && !sess.runCfg.Confirmed {
		sess.mu.Unlock()
		return domain.ErrRunNotConfirmed
	}

	sess.lastActive = e.now()
	e.advanceLocked(sess)
	snap := sess.snapshotLocked(e.now())
	sess.mu.Unlock()

	e.persist(snap)
	return nil
}

// EndQuestion is the host command that force-ends the active question.
func (e *Engine) EndQuestion(ctx context.Context, roomCode, connID string) error {
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.hostConnID != connID {
		sess.mu.Unlock()
		return domain.ErrNotHost
	}
	if sess.phase != domain.PhaseQuestion {
		sess.mu.Unlock()
		return domain.ErrNoActiveQuestion
	}
	sess.lastActive = e.now()
	e.endQuestionLocked(sess)
	snap := sess.snapshotLocked(e.now())
	sess.mu.Unlock()

	e.persist(snap)
	return nil
}

// ConfigureRun reshapes the run list: lobby-only, and always re-derived
// from the immutable template so repeated calls never compound truncation.
func (e *Engine) ConfigureRun(ctx context.Context, roomCode, connID string, count int, shuffle bool) error {
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.hostConnID != connID {
		sess.mu.Unlock()
		return domain.ErrNotHost
	}
	if sess.phase != domain.PhaseLobby || sess.currentIndex != -1 {
		sess.mu.Unlock()
		return domain.ErrRunStarted
	}

	total := len(sess.template)
	if count < 1 || count > total {
		count = total
	}

	order := make([]int, total)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		e.rndMu.Lock()
		for i := total - 1; i > 0; i-- {
			j := e.rnd.Intn(i + 1)
			order[i], order[j] = order[j], order[i]
		}
		e.rndMu.Unlock()
	}
	order = order[:count]

	run := make([]domain.Question, 0, count)
	for _, idx := range order {
		run = append(run, sess.template[idx])
	}
	sess.run = run
	sess.runOrder = order
	sess.runCfg = domain.RunConfig{Count: count, Shuffle: shuffle, Confirmed: true}

	// Reconfiguring invalidates an in-flight countdown.
	sess.cancelTimersLocked()
	sess.lastActive = e.now()
	snap := sess.snapshotLocked(e.now())
	sess.mu.Unlock()

	e.persist(snap)
	return nil
}

// UpdateDuration changes the per-question duration for questions not yet
// started.
func (e *Engine) UpdateDuration(ctx context.Context, roomCode, connID string, seconds int) error {
	if seconds < 5 || seconds > 300 {
		return domain.ErrBadDuration
	}
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.hostConnID != connID {
		sess.mu.Unlock()
		return domain.ErrNotHost
	}
	sess.questionSeconds = seconds
	sess.lastActive = e.now()
	snap := sess.snapshotLocked(e.now())
	sess.mu.Unlock()

	e.persist(snap)
	return nil
}

// SubmitAnswer scores one participant's answer for the active question.
// The evaluation itself can do network I/O (semantic judge), so it runs
// outside the session lock with the submitter parked in pendingEval; a
// duplicate arriving meanwhile is rejected, not interleaved.
func (e *Engine) SubmitAnswer(ctx context.Context, roomCode, playerID, text string) (domain.AnswerResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.AnswerResult{}, domain.ErrEmptyAnswer
	}
	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	p, ok := sess.participants[playerID]
	if !ok {
		sess.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}
	if sess.phase != domain.PhaseQuestion {
		sess.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrNoActiveQuestion
	}
	if _, pending := sess.pendingEval[playerID]; pending {
		sess.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrAnswerInFlight
	}
	if _, done := sess.answered[playerID]; done {
		sess.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}

	now := e.now()
	question, _ := sess.currentQuestion()
	questionIdx := sess.currentIndex
	total := time.Duration(sess.questionSeconds) * time.Second
	remaining := total - now.Sub(sess.questionStartedAt)
	frac := 0.0
	if total > 0 && remaining > 0 {
		frac = float64(remaining) / float64(total)
		if frac > 1 {
			frac = 1
		}
	}

	sess.answered[playerID] = struct{}{}
	sess.pendingEval[playerID] = struct{}{}
	p.lastSeen = now
	sess.lastActive = now
	sess.mu.Unlock()

	result := e.eval.Evaluate(ctx, question, text, evaluate.Timing{
		RemainingFraction: frac,
		AwardSpeed:        true,
	})

	sess.mu.Lock()
	delete(sess.pendingEval, playerID)

	totalScore := result.EarnedScore
	if p, ok := sess.participants[playerID]; ok {
		p.score += result.EarnedScore
		p.answered++
		switch result.Verdict {
		case domain.VerdictCorrect:
			p.correct++
		case domain.VerdictPartial:
			p.partial++
		}
		totalScore = p.score
	}

	now = e.now()
	sess.broadcastLocked(domain.Event{Type: domain.EventLeaderboard, Payload: sess.leaderboardLocked(now)})

	// Fast-forward: once every currently connected participant has
	// answered, the question ends now rather than waiting for the timer.
	if sess.phase == domain.PhaseQuestion && sess.currentIndex == questionIdx && sess.allConnectedAnswered() {
		e.endQuestionLocked(sess)
	}
	snap := sess.snapshotLocked(now)
	sess.mu.Unlock()

	e.persist(snap)
	return domain.AnswerResult{
		Verdict:       result.Verdict,
		EarnedScore:   result.EarnedScore,
		TotalScore:    totalScore,
		CorrectAnswer: question.Answer,
		JudgedBy:      result.JudgedBy,
	}, nil
}

// advanceLocked moves to the next question: bump the index, reset per-
// question state, arm the timeout, announce the question.
func (e *Engine) advanceLocked(sess *Session) {
	sess.cancelTimersLocked()

	sess.currentIndex++
	if sess.currentIndex >= len(sess.run) {
		e.finishLocked(sess)
		return
	}

	sess.phase = domain.PhaseQuestion
	sess.answered = map[string]struct{}{}
	sess.pendingEval = map[string]struct{}{}
	sess.questionStartedAt = e.now()

	q := sess.run[sess.currentIndex]
	sess.broadcastLocked(domain.Event{
		Type: domain.EventQuestionStarted,
		Payload: domain.QuestionStartedPayload{
			Index:    sess.currentIndex,
			Total:    len(sess.run),
			Prompt:   q.Prompt,
			Seconds:  sess.questionSeconds,
			Media:    q.Media,
			HasBonus: true,
		},
	})

	roomCode := sess.code
	epoch := sess.timerEpoch
	sess.questionTimer = e.sched.Schedule(time.Duration(sess.questionSeconds)*time.Second, func() {
		e.onQuestionTimeout(roomCode, epoch)
	})
}

// endQuestionLocked enters the scoring pause: reveal the answer, show the
// leaderboard, arm the pause timer.
func (e *Engine) endQuestionLocked(sess *Session) {
	sess.cancelTimersLocked()
	sess.phase = domain.PhaseScoring

	q, _ := sess.currentQuestion()
	sess.broadcastLocked(domain.Event{
		Type:    domain.EventQuestionEnded,
		Payload: domain.QuestionEndedPayload{Index: sess.currentIndex, CorrectAnswer: q.Answer},
	})

	pause := e.cfg.PauseSeconds
	sess.broadcastLocked(domain.Event{
		Type: domain.EventLeaderboardShow,
		Payload: domain.LeaderboardShowPayload{
			Leaderboard:  sess.leaderboardLocked(e.now()),
			PauseSeconds: &pause,
		},
	})

	roomCode := sess.code
	epoch := sess.timerEpoch
	sess.pauseTimer = e.sched.Schedule(time.Duration(pause)*time.Second, func() {
		e.onPauseExpired(roomCode, epoch)
	})
}

func (e *Engine) finishLocked(sess *Session) {
	sess.cancelTimersLocked()
	sess.phase = domain.PhaseFinished

	lb := sess.leaderboardLocked(e.now())
	sess.broadcastLocked(domain.Event{
		Type:    domain.EventLeaderboardShow,
		Payload: domain.LeaderboardShowPayload{Leaderboard: lb, PauseSeconds: nil},
	})
	sess.broadcastLocked(domain.Event{Type: domain.EventQuizFinished, Payload: lb})
}

// onQuestionTimeout fires when the question timer elapses. A stale firing
// (the question already ended) is a no-op thanks to the epoch check.
func (e *Engine) onQuestionTimeout(roomCode string, epoch uint64) {
	defer e.recoverTimer("question-timeout", roomCode)

	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return
	}
	sess.mu.Lock()
	if sess.timerEpoch != epoch || sess.phase != domain.PhaseQuestion {
		sess.mu.Unlock()
		return
	}
	e.endQuestionLocked(sess)
	snap := sess.snapshotLocked(e.now())
	sess.mu.Unlock()

	e.persist(snap)
}

// onPauseExpired advances to the next question or finishes the run.
func (e *Engine) onPauseExpired(roomCode string, epoch uint64) {
	defer e.recoverTimer("scoring-pause", roomCode)

	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return
	}
	sess.mu.Lock()
	if sess.timerEpoch != epoch || sess.phase != domain.PhaseScoring {
		sess.mu.Unlock()
		return
	}
	e.advanceLocked(sess)
	snap := sess.snapshotLocked(e.now())
	sess.mu.Unlock()

	e.persist(snap)
}

// startCountdownLocked arms the lobby countdown and broadcasts the first
// tick.
func (e *Engine) startCountdownLocked(sess *Session, seconds int) {
	if seconds <= 0 {
		return
	}
	sess.countdownRemaining = seconds
	sess.broadcastLocked(domain.Event{
		Type:    domain.EventCountdown,
		Payload: domain.CountdownPayload{SecondsRemaining: seconds},
	})

	roomCode := sess.code
	epoch := sess.timerEpoch
	sess.countdownTimer = e.sched.Schedule(time.Second, func() {
		e.onCountdownTick(roomCode, epoch)
	})
}

// onCountdownTick decrements the lobby countdown, broadcasting each second;
// at zero it takes the same path as an explicit host start.
func (e *Engine) onCountdownTick(roomCode string, epoch uint64) {
	defer e.recoverTimer("lobby-countdown", roomCode)

	sess, ok := e.registry.Get(roomCode)
	if !ok {
		return
	}
	sess.mu.Lock()
	if sess.timerEpoch != epoch || sess.phase != domain.PhaseLobby {
		sess.mu.Unlock()
		return
	}

	sess.countdownRemaining--
	if sess.countdownRemaining > 0 {
		sess.broadcastLocked(domain.Event{
			Type:    domain.EventCountdown,
			Payload: domain.CountdownPayload{SecondsRemaining: sess.countdownRemaining},
		})
		sess.countdownTimer = e.sched.Schedule(time.Second, func() {
			e.onCountdownTick(roomCode, epoch)
		})
		sess.mu.Unlock()
		return
	}

	sess.countdownTimer = nil
	sess.countdownRemaining = 0
	if len(sess.run) > e.cfg.ConfirmThreshold && !sess.runCfg.Confirmed {
		// Large unconfirmed run: stay in the lobby and wait for the host.
		e.log.Info().Str("room", roomCode).Msg("countdown elapsed but run is unconfirmed")
		sess.mu.Unlock()
		return
	}
	e.advanceLocked(sess)
	snap := sess.snapshotLocked(e.now())
	sess.mu.Unlock()

	e.persist(snap)
}

// resumeTimersLocked re-arms whatever timer the current phase needs, using
// elapsed-time deltas. Used when a host reclaims a room and when sessions
// are rehydrated after a restart.
func (e *Engine) resumeTimersLocked(sess *Session) {
	switch sess.phase {
	case domain.PhaseLobby:
		if sess.countdownRemaining > 0 && sess.countdownTimer == nil {
			remaining := sess.countdownRemaining
			sess.countdownRemaining = 0
			e.startCountdownLocked(sess, remaining)
		}
	case domain.PhaseQuestion:
		if sess.questionTimer != nil {
			return
		}
		total := time.Duration(sess.questionSeconds) * time.Second
		remaining := total - e.now().Sub(sess.questionStartedAt)
		if remaining <= 0 {
			e.endQuestionLocked(sess)
			return
		}
		roomCode := sess.code
		epoch := sess.timerEpoch
		sess.questionTimer = e.sched.Schedule(remaining, func() {
			e.onQuestionTimeout(roomCode, epoch)
		})
	case domain.PhaseScoring:
		if sess.pauseTimer != nil {
			return
		}
		roomCode := sess.code
		epoch := sess.timerEpoch
		sess.pauseTimer = e.sched.Schedule(time.Duration(e.cfg.PauseSeconds)*time.Second, func() {
			e.onPauseExpired(roomCode, epoch)
		})
	}
}
