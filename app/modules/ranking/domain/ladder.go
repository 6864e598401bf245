package rankingdomain

import "math"

// Step is one rung of the ladder: the label and the lowest score reaching it.
type Step struct {
	Label Label
	At    int64
}

// Ladder lists every sub-level from B5 up to and including LEGEND ★1 together
// with the cumulative score at which it is first reached.
func Ladder() []Step {
	steps := make([]Step, 0, int(TierLegend)*SubLevels+1)

	cur := Label{Tier: TierB, Sub: SubLevels}
	var at int64
	for {
		steps = append(steps, Step{Label: cur, At: at})
		if cur.Tier == TierLegend {
			return steps
		}
		at += cur.Tier.Cost()
		cur = cur.next()
	}
}

// TierEntry returns the lowest score that places a player in t.
func TierEntry(t Tier) int64 {
	for _, s := range Ladder() {
		if s.Label.Tier == t {
			return s.At
		}
	}
	return 0
}

// NextStepAt returns the score at which the label after Compute(score) is
// reached. It exceeds score, except that it saturates at math.MaxInt64 when
// the next star is not representable.
func NextStepAt(score int64) int64 {
	score = max(score, 0)
	cur := Compute(score)

	if cur.Tier == TierLegend {
		legendAt := TierEntry(TierLegend)
		cost := TierLegend.Cost()
		if cur.Stars > (math.MaxInt64-legendAt)/cost {
			return math.MaxInt64
		}
		return legendAt + cur.Stars*cost
	}

	for _, s := range Ladder() {
		if s.At > score {
			return s.At
		}
	}
	// unreachable: the ladder always ends at LEGEND ★1
	return score + cur.Tier.Cost()
}
