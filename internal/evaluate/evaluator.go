package evaluate

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

// Profile controls how forgiving the matching ladder is.
type Profile string

const (
	ProfileStrict  Profile = "strict"
	ProfileNormal  Profile = "normal"
	ProfileLenient Profile = "lenient"
)

// ParseProfile maps a config string onto a profile, defaulting to normal.
func ParseProfile(raw string) Profile {
	switch Profile(raw) {
	case ProfileStrict, ProfileNormal, ProfileLenient:
		return Profile(raw)
	default:
		return ProfileNormal
	}
}

// JudgeMode selects where the semantic judge sits in the ladder.
type JudgeMode string

const (
	// JudgePrimary consults the judge before the rules and keeps its verdict
	// when confident.
	JudgePrimary JudgeMode = "primary"
	// JudgeFallback consults the judge only when the rules say Wrong.
	JudgeFallback JudgeMode = "fallback"
)

// Result is the outcome of a single evaluation.
type Result struct {
	Verdict     domain.Verdict
	EarnedScore int
	JudgedBy    string
}

// Evaluator decides whether a submitted free-text answer matches a question.
// Without a judge configured it is a pure function of its inputs, which is
// what makes re-scoring safe.
type Evaluator struct {
	profile    Profile
	synonyms   SynonymSource
	judge      Judge
	judgeMode  JudgeMode
	confidence float64
	log        zerolog.Logger
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithSynonyms enables the single-word synonym rule backed by src.
func WithSynonyms(src SynonymSource) Option {
	return func(e *Evaluator) { e.synonyms = src }
}

// WithJudge enables the semantic judge. Verdicts below minConfidence are
// discarded and the rule-based verdict stands.
func WithJudge(j Judge, mode JudgeMode, minConfidence float64) Option {
	return func(e *Evaluator) {
		e.judge = j
		e.judgeMode = mode
		e.confidence = minConfidence
	}
}

// WithLogger routes degraded-evaluation logs through log.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Evaluator) { e.log = log }
}

func New(profile Profile, opts ...Option) *Evaluator {
	e := &Evaluator{
		profile:   profile,
		judgeMode: JudgeFallback,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the matching ladder and computes the earned score.
// External-service failures (synonyms, judge) degrade to the next rule and
// never surface as errors.
func (e *Evaluator) Evaluate(ctx context.Context, q domain.Question, submitted string, timing Timing) Result {
	verdict, judgedBy := e.classify(ctx, q, submitted)
	return Result{
		Verdict:     verdict,
		EarnedScore: score(verdict, timing),
		JudgedBy:    judgedBy,
	}
}

func (e *Evaluator) classify(ctx context.Context, q domain.Question, submitted string) (domain.Verdict, string) {
	got := Normalize(submitted)
	if got == "" {
		return domain.VerdictWrong, "none"
	}

	if e.judge != nil && e.judgeMode == JudgePrimary {
		if verdict, by, ok := e.consultJudge(ctx, q, submitted); ok {
			return verdict, by
		}
	}

	expected := append([]string{q.Answer}, q.Alternates...)

	// Rule 1: exact or compact match against the canonical answer and
	// alternates.
	gotCompact := Compact(submitted)
	for _, want := range expected {
		if got == Normalize(want) || gotCompact == Compact(want) {
			return domain.VerdictCorrect, "exact"
		}
	}

	// Rule 2: explicit partial-credit list.
	for _, want := range q.PartialCredit {
		if got == Normalize(want) || gotCompact == Compact(want) {
			return domain.VerdictPartial, "partial-list"
		}
	}

	if e.profile != ProfileStrict {
		// Rule 3: single-word synonyms of the expected answers.
		if e.synonyms != nil && !strings.Contains(got, " ") {
			if e.matchesSynonym(ctx, got, expected) {
				return domain.VerdictPartial, "synonym"
			}
		}

		// Rule 4: close-match heuristic.
		for _, want := range expected {
			if closeMatch(got, Normalize(want), e.profile) {
				return domain.VerdictPartial, "close-match"
			}
		}
	}

	if e.judge != nil && e.judgeMode == JudgeFallback {
		if verdict, by, ok := e.consultJudge(ctx, q, submitted); ok && verdict != domain.VerdictWrong {
			return verdict, by
		}
	}

	return domain.VerdictWrong, "none"
}

// consultJudge returns ok=false whenever the judge verdict must not be
// trusted: unreachable providers, malformed replies, or confidence below the
// configured floor. Callers fall back to the rule ladder in that case.
func (e *Evaluator) consultJudge(ctx context.Context, q domain.Question, submitted string) (domain.Verdict, string, bool) {
	jv, err := e.judge.Judge(ctx, q, submitted)
	if err != nil {
		e.log.Warn().Err(err).Str("prompt", q.Prompt).Msg("semantic judge unavailable, using rules")
		return domain.VerdictWrong, "", false
	}
	if jv.Confidence < e.confidence {
		return domain.VerdictWrong, "", false
	}
	return jv.Verdict, "judge:" + e.judge.Name(), true
}

func (e *Evaluator) matchesSynonym(ctx context.Context, got string, expected []string) bool {
	for _, want := range expected {
		normalized := Normalize(want)
		if strings.Contains(normalized, " ") {
			continue
		}
		syns, err := e.synonyms.Lookup(ctx, normalized)
		if err != nil {
			e.log.Warn().Err(err).Str("word", normalized).Msg("synonym lookup failed")
			continue
		}
		for _, syn := range syns {
			if Normalize(syn) == got {
				return true
			}
		}
	}
	return false
}

// closeMatch accepts near-misses: high edit-distance similarity, a single
// typo on short answers, two typos on long ones, or containment once both
// strings are substantial.
func closeMatch(got, want string, profile Profile) bool {
	if want == "" {
		return false
	}

	threshold := 0.80
	if profile == ProfileLenient {
		threshold = 0.70
	}

	longest := len([]rune(got))
	if w := len([]rune(want)); w > longest {
		longest = w
	}
	dist := levenshtein.ComputeDistance(got, want)
	similarity := 1 - float64(dist)/float64(longest)

	switch {
	case similarity >= threshold:
		return true
	case dist == 1 && longest <= 6:
		return true
	case dist == 2 && longest >= 10 && similarity >= threshold-0.05:
		return true
	case len([]rune(got)) >= 5 && len([]rune(want)) >= 5 &&
		(strings.Contains(got, want) || strings.Contains(want, got)):
		return true
	}
	return false
}
