package evaluate

import (
	"math"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

const (
	// BaseScore is awarded for any non-wrong verdict.
	BaseScore = 1000
	// BonusCap is the maximum speed bonus, scaled by the fraction of time
	// remaining at submission.
	BonusCap = 500
)

// Timing carries the speed context of a submission. AwardSpeed is false for
// contexts that never grant a bonus (offline or untimed submissions).
type Timing struct {
	RemainingFraction float64
	AwardSpeed        bool
}

// score computes the points for a verdict. Partial earns exactly half of the
// equivalent Correct amount, with rounding applied once at the end.
func score(verdict domain.Verdict, timing Timing) int {
	if verdict == domain.VerdictWrong {
		return 0
	}
	raw := float64(BaseScore)
	if timing.AwardSpeed {
		frac := timing.RemainingFraction
		if frac < 0 {
			frac = 0
		} else if frac > 1 {
			frac = 1
		}
		raw += frac * float64(BonusCap)
	}
	if verdict == domain.VerdictPartial {
		raw /= 2
	}
	return int(math.Round(raw))
}
