package domain

// Event is a state-change notification fanned out to every connection in a
// room. Payload shapes are owned by the engine; the transport forwards them
// verbatim as {type, payload} JSON.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Room event types.
const (
	EventQuestionStarted = "questionStarted"
	EventQuestionEnded   = "questionEnded"
	EventLeaderboard     = "leaderboard"
	EventLeaderboardShow = "leaderboardShow"
	EventQuizFinished    = "quizFinished"
	EventQuizTerminated  = "quizTerminated"
	EventCountdown       = "countdown"
)

// QuestionStartedPayload announces a new active question. The canonical
// answer is deliberately absent.
type QuestionStartedPayload struct {
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Prompt   string   `json:"prompt"`
	Seconds  int      `json:"seconds"`
	Media    MediaRef `json:"media,omitempty"`
	HasBonus bool     `json:"hasBonus"`
}

// QuestionEndedPayload reveals the canonical answer once scoring opens.
type QuestionEndedPayload struct {
	Index         int    `json:"index"`
	CorrectAnswer string `json:"correctAnswer"`
}

// LeaderboardShowPayload tells clients how long the scoreboard stays up.
// PauseSeconds is nil on the final leaderboard.
type LeaderboardShowPayload struct {
	Leaderboard  Leaderboard `json:"leaderboard"`
	PauseSeconds *int        `json:"pauseSeconds"`
}

// CountdownPayload ticks the lobby countdown.
type CountdownPayload struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

// TerminatedPayload explains why a room closed.
type TerminatedPayload struct {
	Reason string `json:"reason"`
}
