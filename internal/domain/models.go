package domain

import "time"

// Phase is the lifecycle stage of a live session.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question"
	PhaseScoring  Phase = "scoring"
	PhaseFinished Phase = "finished"
)

// MediaKind discriminates the MediaRef variant.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaRef is an optional media attachment for a question. The zero value
// means "no media".
type MediaRef struct {
	Kind   MediaKind `json:"kind,omitempty"`
	Source string    `json:"source,omitempty"`
}

// IsZero reports whether the reference carries no media.
func (m MediaRef) IsZero() bool { return m.Kind == MediaNone }

// Question is a free-text question. Immutable once the template is created.
type Question struct {
	Prompt        string   `json:"prompt"`
	Answer        string   `json:"answer"`
	Alternates    []string `json:"alternates,omitempty"`
	PartialCredit []string `json:"partialCredit,omitempty"`
	Media         MediaRef `json:"media,omitempty"`
}

// QuizTemplate is the authored quiz content a session is spawned from.
// Immutable; the engine only reads it.
type QuizTemplate struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	QuestionSeconds int        `json:"questionSeconds"`
	Questions       []Question `json:"questions"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	PlayerID    string  `json:"playerId"`
	DisplayName string  `json:"displayName"`
	Score       int     `json:"score"`
	Accuracy    float64 `json:"accuracy"`
	Connected   bool    `json:"connected"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	RoomCode  string             `json:"roomCode"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Verdict classifies a submitted answer.
type Verdict string

const (
	VerdictCorrect Verdict = "correct"
	VerdictPartial Verdict = "partial"
	VerdictWrong   Verdict = "wrong"
)

// AnswerResult is the private outcome returned to a submitter.
type AnswerResult struct {
	Verdict       Verdict `json:"verdict"`
	EarnedScore   int     `json:"earnedScore"`
	TotalScore    int     `json:"totalScore"`
	CorrectAnswer string  `json:"correctAnswer"`
	JudgedBy      string  `json:"judgedBy"`
}

// RunConfig is the host-chosen shape of a run: how many template questions
// to play and whether the run list is shuffled.
type RunConfig struct {
	Count     int  `json:"count"`
	Shuffle   bool `json:"shuffle"`
	Confirmed bool `json:"confirmed"`
}

// ParticipantSnapshot is the persisted view of a roster member.
type ParticipantSnapshot struct {
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	Correct     int       `json:"correct"`
	Partial     int       `json:"partial"`
	Answered    int       `json:"answered"`
	Connected   bool      `json:"connected"`
	LastSeen    time.Time `json:"lastSeen"`
}

// SessionSnapshot is what crosses the persistence boundary: enough to
// rehydrate a session after a clean restart. Timers are re-derived from the
// stored timestamps, never persisted as handles.
type SessionSnapshot struct {
	RoomCode          string                `json:"roomCode"`
	TemplateID        string                `json:"templateId"`
	Phase             Phase                 `json:"phase"`
	Run               RunConfig             `json:"run"`
	RunOrder          []int                 `json:"runOrder"`
	CurrentIndex      int                   `json:"currentIndex"`
	QuestionSeconds   int                   `json:"questionSeconds"`
	QuestionStartedAt time.Time             `json:"questionStartedAt,omitempty"`
	Participants      []ParticipantSnapshot `json:"participants"`
	SavedAt           time.Time             `json:"savedAt"`
}
