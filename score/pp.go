package score

import "math"

// FallbackPP computes pp when the Calculator cannot score a ruleset
// directly but star rating is available, either from the Calculator's
// difficulty-only response or a previously cached rating. totalScore is
// the standardised total score of the play being evaluated.
func FallbackPP(starRating float64, totalScore int64) float64 {
	const k = 4.0

	s := starRating
	x := float64(totalScore) / 1_000_000
	pMax := 1.4 * math.Pow(s, 2.8)

	clampedS := s
	if clampedS < 1 {
		clampedS = 1
	} else if clampedS > 8 {
		clampedS = 8
	}
	b := 0.95 - 0.33*(clampedS-1)/7

	if x < b {
		return pMax * x
	}

	u := (x - b) / (1 - b)
	return pMax * (b + (1-b)*(math.Exp(k*u)-1)/(math.Exp(k)-1))
}
