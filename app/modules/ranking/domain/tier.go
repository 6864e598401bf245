package rankingdomain

import (
	"fmt"
	"strconv"
)

// Tier is a named rank on the ladder. The zero value is TierB.
type Tier int

const (
	TierB Tier = iota
	TierA
	TierS
	TierSS
	TierSSS
	TierLegend
)

// SubLevels is the number of sub-levels in every tier below LEGEND.
const SubLevels = 5

var tierNames = [...]string{
	TierB:      "B",
	TierA:      "A",
	TierS:      "S",
	TierSS:     "SS",
	TierSSS:    "SSS",
	TierLegend: "LEGEND",
}

// tierCost is the score consumed per sub-level (or per star in LEGEND).
var tierCost = [...]int64{
	TierB:      50,
	TierA:      75,
	TierS:      100,
	TierSS:     100,
	TierSSS:    100,
	TierLegend: 100,
}

// Tiers returns all tiers in ascending order.
func Tiers() []Tier {
	return []Tier{TierB, TierA, TierS, TierSS, TierSSS, TierLegend}
}

func (t Tier) String() string {
	if t < TierB || t > TierLegend {
		return "Tier(" + strconv.Itoa(int(t)) + ")"
	}
	return tierNames[t]
}

// Cost returns the score needed to advance one step while in t.
func (t Tier) Cost() int64 {
	return tierCost[t]
}

// Label is the position reached on the ladder. Sub is set for tiers below
// LEGEND (5 just entered, 1 about to promote); Stars is set for LEGEND.
type Label struct {
	Tier  Tier
	Sub   int
	Stars int64
}

// String formats the label as "A3", "SSS1" or "LEGEND ★12".
func (l Label) String() string {
	if l.Tier == TierLegend {
		return fmt.Sprintf("LEGEND ★%d", l.Stars)
	}
	return l.Tier.String() + strconv.Itoa(l.Sub)
}

// Progress returns a single ordinal for the label: every step on the ladder
// adds one, so a higher score never yields a lower Progress.
func (l Label) Progress() int64 {
	if l.Tier == TierLegend {
		return int64(TierLegend)*SubLevels + l.Stars - 1
	}
	return int64(l.Tier)*SubLevels + int64(SubLevels-l.Sub)
}

// Less reports whether l is strictly below other on the ladder.
func (l Label) Less(other Label) bool {
	return l.Progress() < other.Progress()
}

// Compute walks the ladder from B5, paying the current tier's cost for each
// step until the remaining score can no longer cover it. Negative scores are
// treated as zero.
func Compute(score int64) Label {
	remaining := max(score, 0)
	cur := Label{Tier: TierB, Sub: SubLevels}

	for remaining >= cur.Tier.Cost() {
		if cur.Tier == TierLegend {
			// LEGEND has no further promotion; every remaining full cost is a star.
			cur.Stars += remaining / cur.Tier.Cost()
			break
		}
		remaining -= cur.Tier.Cost()
		cur = cur.next()
	}
	return cur
}

// ComputeTier returns the formatted tier label for score.
func ComputeTier(score int64) string {
	return Compute(score).String()
}

// next returns the label one paid step above l.
func (l Label) next() Label {
	switch {
	case l.Tier == TierLegend:
		l.Stars++
	case l.Sub > 1:
		l.Sub--
	case l.Tier == TierSSS:
		l = Label{Tier: TierLegend, Stars: 1}
	default:
		l = Label{Tier: l.Tier + 1, Sub: SubLevels}
	}
	return l
}
