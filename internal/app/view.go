package app

import (
	"time"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

// SessionView is the full state handed to a connection that claims, joins,
// or reconnects: enough for a client to render the room mid-run without
// replaying events.
type SessionView struct {
	RoomCode           string                         `json:"roomCode"`
	Title              string                         `json:"title"`
	Phase              domain.Phase                   `json:"phase"`
	Run                domain.RunConfig               `json:"run"`
	TotalQuestions     int                            `json:"totalQuestions"`
	CurrentIndex       int                            `json:"currentIndex"`
	QuestionSeconds    int                            `json:"questionSeconds"`
	CountdownRemaining int                            `json:"countdownRemaining,omitempty"`
	Question           *domain.QuestionStartedPayload `json:"question,omitempty"`
	RemainingSeconds   int                            `json:"remainingSeconds,omitempty"`
	Leaderboard        domain.Leaderboard             `json:"leaderboard"`
}

func (e *Engine) viewLocked(sess *Session) SessionView {
	now := e.now()
	view := SessionView{
		RoomCode:           sess.code,
		Title:              sess.title,
		Phase:              sess.phase,
		Run:                sess.runCfg,
		TotalQuestions:     len(sess.run),
		CurrentIndex:       sess.currentIndex,
		QuestionSeconds:    sess.questionSeconds,
		CountdownRemaining: sess.countdownRemaining,
		Leaderboard:        sess.leaderboardLocked(now),
	}
	if sess.phase == domain.PhaseQuestion {
		if q, ok := sess.currentQuestion(); ok {
			view.Question = &domain.QuestionStartedPayload{
				Index:    sess.currentIndex,
				Total:    len(sess.run),
				Prompt:   q.Prompt,
				Seconds:  sess.questionSeconds,
				Media:    q.Media,
				HasBonus: true,
			}
			total := time.Duration(sess.questionSeconds) * time.Second
			if remaining := total - now.Sub(sess.questionStartedAt); remaining > 0 {
				view.RemainingSeconds = int(remaining / time.Second)
			}
		}
	}
	return view
}
