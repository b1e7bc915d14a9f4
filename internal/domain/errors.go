package domain

import "errors"

// Validation errors: malformed or missing input, rejected before any state
// change.
var (
	ErrEmptyTitle       = errors.New("quiz title must not be empty")
	ErrNoQuestions      = errors.New("quiz must contain at least one question")
	ErrBadDuration      = errors.New("question duration out of range")
	ErrEmptyDisplayName = errors.New("display name must not be empty")
	ErrEmptyAnswer      = errors.New("submitted answer must not be empty")
)

// Ownership errors.
var (
	// ErrNotHost is returned when a host-only command arrives from a
	// connection that does not own the session.
	ErrNotHost = errors.New("command requires host ownership")
	// ErrHostConflict is returned when a claim targets a session already
	// owned by another live connection.
	ErrHostConflict = errors.New("session already claimed by another host")
)

// Not-found errors.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrTemplateNotFound    = errors.New("quiz template not found")
	ErrParticipantNotFound = errors.New("participant not found in session")
	ErrReconnectFailed     = errors.New("no session holds this participant")
)

// Phase errors: the command is well-formed but invalid for the session's
// current phase.
var (
	ErrQuestionActive   = errors.New("a question is already active")
	ErrNoActiveQuestion = errors.New("no question is active")
	ErrAlreadyAnswered  = errors.New("already answered this question")
	ErrAnswerInFlight   = errors.New("previous answer still being evaluated")
	ErrRunStarted       = errors.New("run configuration is locked once started")
	ErrRunUnderway      = errors.New("run already underway")
	ErrRunNotConfirmed  = errors.New("confirm run configuration before starting")
	ErrRunFinished      = errors.New("run already finished")
)

// ErrJudgeUnavailable marks an external adjudicator that could not produce
// a usable verdict. Always recoverable; never user-facing.
var ErrJudgeUnavailable = errors.New("semantic judge unavailable")
