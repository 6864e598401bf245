package rankingdomain

import (
	"github.com/dustin/go-humanize"
)

// RatingBand names the display colour band for a player rating.
type RatingBand string

const (
	BandNeutral RatingBand = "neutral"
	BandBlue    RatingBand = "blue"
	BandEmerald RatingBand = "emerald"
	BandYellow  RatingBand = "yellow"
	BandRed     RatingBand = "red"
	BandPurple  RatingBand = "purple"
	BandBronze  RatingBand = "bronze"
	BandSilver  RatingBand = "silver"
	BandAmber   RatingBand = "amber"
	BandGold    RatingBand = "gold"
	BandRainbow RatingBand = "rainbow"
)

// DefaultRatingMask is the rating above which the value is hidden.
const DefaultRatingMask = 17000

// MaskedRating replaces ratings above the mask threshold.
const MaskedRating = "***"

var ratingBands = []struct {
	min  int
	band RatingBand
}{
	{15000, BandRainbow},
	{14500, BandGold},
	{14000, BandAmber},
	{13000, BandSilver},
	{12000, BandBronze},
	{10000, BandPurple},
	{7000, BandRed},
	{4000, BandYellow},
	{2000, BandEmerald},
	{1000, BandBlue},
}

// BandForRating returns the band for rating; bands are checked highest first.
func BandForRating(rating int) RatingBand {
	for _, b := range ratingBands {
		if rating >= b.min {
			return b.band
		}
	}
	return BandNeutral
}

// DisplayRating formats rating with thousands separators, or returns
// MaskedRating when rating is above maskAbove. A maskAbove <= 0 disables masking.
func DisplayRating(rating, maskAbove int) string {
	if maskAbove > 0 && rating > maskAbove {
		return MaskedRating
	}
	return humanize.Comma(int64(rating))
}
