package evaluate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

var noBonus = Timing{AwardSpeed: false}

func question(answer string, alternates ...string) domain.Question {
	return domain.Question{Prompt: "prompt", Answer: answer, Alternates: alternates}
}

func TestExactAndCompactMatch(t *testing.T) {
	e := New(ProfileNormal)
	ctx := context.Background()

	cases := []struct {
		q         domain.Question
		submitted string
		want      domain.Verdict
	}{
		{question("Paris"), "paris", domain.VerdictCorrect},
		{question("Café-Au-Lait"), "cafe au lait", domain.VerdictCorrect},
		{question("ice cream"), "ice-cream", domain.VerdictCorrect},
		{question("ice cream"), "icecream", domain.VerdictCorrect},
		{question("Paris", "City of Light"), "city of light", domain.VerdictCorrect},
		{question("Paris"), "London", domain.VerdictWrong},
		{question("Paris"), "", domain.VerdictWrong},
	}
	for _, tc := range cases {
		got := e.Evaluate(ctx, tc.q, tc.submitted, noBonus)
		if got.Verdict != tc.want {
			t.Errorf("Evaluate(%q vs %q) = %s, want %s", tc.submitted, tc.q.Answer, got.Verdict, tc.want)
		}
	}
}

func TestNormalizationRoundTrip(t *testing.T) {
	q := question("cafe au lait")
	for _, profile := range []Profile{ProfileNormal, ProfileLenient} {
		e := New(profile)
		got := e.Evaluate(context.Background(), q, "  Café-Au-Lait!! ", noBonus)
		if got.Verdict != domain.VerdictCorrect {
			t.Errorf("profile %s: verdict = %s, want correct", profile, got.Verdict)
		}
	}
}

func TestPartialCreditList(t *testing.T) {
	q := domain.Question{Answer: "mitochondria", PartialCredit: []string{"organelle"}}
	e := New(ProfileStrict)
	got := e.Evaluate(context.Background(), q, "Organelle", noBonus)
	if got.Verdict != domain.VerdictPartial {
		t.Fatalf("verdict = %s, want partial", got.Verdict)
	}
	if got.JudgedBy != "partial-list" {
		t.Fatalf("judgedBy = %s, want partial-list", got.JudgedBy)
	}
}

func TestCloseMatch(t *testing.T) {
	e := New(ProfileNormal)
	ctx := context.Background()

	// Single typo on a short answer.
	got := e.Evaluate(ctx, question("paris"), "parris", noBonus)
	if got.Verdict != domain.VerdictPartial {
		t.Fatalf("one-typo verdict = %s, want partial", got.Verdict)
	}

	// Containment for substantial strings.
	got = e.Evaluate(ctx, question("george washington"), "washington", noBonus)
	if got.Verdict != domain.VerdictPartial {
		t.Fatalf("containment verdict = %s, want partial", got.Verdict)
	}

	// Strict profile never fuzzy-matches.
	strict := New(ProfileStrict)
	got = strict.Evaluate(ctx, question("paris"), "parris", noBonus)
	if got.Verdict != domain.VerdictWrong {
		t.Fatalf("strict verdict = %s, want wrong", got.Verdict)
	}
}

func TestScoring(t *testing.T) {
	e := New(ProfileNormal)
	ctx := context.Background()
	q := question("paris")

	cases := []struct {
		name      string
		submitted string
		timing    Timing
		want      int
	}{
		{"correct full bonus", "paris", Timing{RemainingFraction: 1, AwardSpeed: true}, BaseScore + BonusCap},
		{"correct no time left", "paris", Timing{RemainingFraction: 0, AwardSpeed: true}, BaseScore},
		{"correct at 15 of 20s", "paris", Timing{RemainingFraction: 0.75, AwardSpeed: true}, 1375},
		{"correct no speed context", "paris", Timing{RemainingFraction: 1, AwardSpeed: false}, BaseScore},
		{"partial is half, rounded once", "parris", Timing{RemainingFraction: 0.75, AwardSpeed: true}, 688},
		{"partial no time left", "parris", Timing{RemainingFraction: 0, AwardSpeed: true}, BaseScore / 2},
		{"wrong scores zero", "london", Timing{RemainingFraction: 1, AwardSpeed: true}, 0},
	}
	for _, tc := range cases {
		got := e.Evaluate(ctx, q, tc.submitted, tc.timing)
		if got.EarnedScore != tc.want {
			t.Errorf("%s: score = %d, want %d", tc.name, got.EarnedScore, tc.want)
		}
	}
}

func TestDeterminismWithoutJudge(t *testing.T) {
	e := New(ProfileNormal)
	q := question("ice cream", "gelato")
	timing := Timing{RemainingFraction: 0.42, AwardSpeed: true}
	first := e.Evaluate(context.Background(), q, "icecrem", timing)
	for i := 0; i < 10; i++ {
		again := e.Evaluate(context.Background(), q, "icecrem", timing)
		if again != first {
			t.Fatalf("evaluation not deterministic: %+v vs %+v", again, first)
		}
	}
}

type fakeSynonyms struct {
	calls int32
	words map[string][]string
}

func (f *fakeSynonyms) Lookup(_ context.Context, word string) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	if syns, ok := f.words[word]; ok {
		return syns, nil
	}
	return nil, nil
}

func TestSynonymRule(t *testing.T) {
	src := &fakeSynonyms{words: map[string][]string{"big": {"large", "huge"}}}
	e := New(ProfileNormal, WithSynonyms(NewCachedSynonyms(src)))

	got := e.Evaluate(context.Background(), question("big"), "huge", noBonus)
	if got.Verdict != domain.VerdictPartial || got.JudgedBy != "synonym" {
		t.Fatalf("got %+v, want partial via synonym", got)
	}

	// Second evaluation hits the cache.
	_ = e.Evaluate(context.Background(), question("big"), "large", noBonus)
	if n := atomic.LoadInt32(&src.calls); n != 1 {
		t.Fatalf("synonym source called %d times, want 1", n)
	}
}

func TestSynonymLookupFailureDegrades(t *testing.T) {
	e := New(ProfileNormal, WithSynonyms(failingSynonyms{}))
	got := e.Evaluate(context.Background(), question("big"), "huge", noBonus)
	if got.Verdict != domain.VerdictWrong {
		t.Fatalf("verdict = %s, want wrong when lookup fails", got.Verdict)
	}
}

type failingSynonyms struct{}

func (failingSynonyms) Lookup(context.Context, string) ([]string, error) {
	return nil, errors.New("service down")
}

type fakeJudge struct {
	verdict JudgeVerdict
	err     error
}

func (fakeJudge) Name() string { return "fake" }

func (f fakeJudge) Judge(context.Context, domain.Question, string) (JudgeVerdict, error) {
	return f.verdict, f.err
}

func TestJudgeFallback(t *testing.T) {
	ctx := context.Background()
	q := question("the mitochondria is the powerhouse of the cell")

	// Confident judge upgrades a rule-based Wrong.
	e := New(ProfileNormal, WithJudge(fakeJudge{verdict: JudgeVerdict{Verdict: domain.VerdictCorrect, Confidence: 0.9}}, JudgeFallback, 0.7))
	got := e.Evaluate(ctx, q, "it makes energy for the cell", noBonus)
	if got.Verdict != domain.VerdictCorrect {
		t.Fatalf("verdict = %s, want correct from judge", got.Verdict)
	}
	if got.JudgedBy != "judge:fake" {
		t.Fatalf("judgedBy = %s, want judge:fake", got.JudgedBy)
	}

	// Low confidence is discarded.
	e = New(ProfileNormal, WithJudge(fakeJudge{verdict: JudgeVerdict{Verdict: domain.VerdictCorrect, Confidence: 0.3}}, JudgeFallback, 0.7))
	got = e.Evaluate(ctx, q, "it makes energy for the cell", noBonus)
	if got.Verdict != domain.VerdictWrong {
		t.Fatalf("verdict = %s, want wrong when judge unconfident", got.Verdict)
	}

	// Judge failure fails closed: rules verdict stands, no error escapes.
	e = New(ProfileNormal, WithJudge(fakeJudge{err: domain.ErrJudgeUnavailable}, JudgeFallback, 0.7))
	got = e.Evaluate(ctx, q, "it makes energy for the cell", noBonus)
	if got.Verdict != domain.VerdictWrong {
		t.Fatalf("verdict = %s, want wrong when judge down", got.Verdict)
	}
}

func TestJudgePrimary(t *testing.T) {
	q := question("paris")
	e := New(ProfileNormal, WithJudge(fakeJudge{verdict: JudgeVerdict{Verdict: domain.VerdictPartial, Confidence: 1}}, JudgePrimary, 0.7))
	got := e.Evaluate(context.Background(), q, "paris", noBonus)
	if got.Verdict != domain.VerdictPartial {
		t.Fatalf("verdict = %s, want judge verdict to win in primary mode", got.Verdict)
	}

	// Primary judge down: the rules still run.
	e = New(ProfileNormal, WithJudge(fakeJudge{err: domain.ErrJudgeUnavailable}, JudgePrimary, 0.7))
	got = e.Evaluate(context.Background(), q, "paris", noBonus)
	if got.Verdict != domain.VerdictCorrect {
		t.Fatalf("verdict = %s, want rules to take over", got.Verdict)
	}
}
