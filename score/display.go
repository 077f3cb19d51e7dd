package score

import "math"

// MaxScore is the denominator every display-score conversion formula
// divides by.
const MaxScore = 1_000_000

// StandardisedToClassic converts a ruleset's standardised total score S
// back to the classic scoring scale, given N basic-judgement objects.
func StandardisedToClassic(rulesetID int, standardisedScore int64, basicObjectCount int) int64 {
	s := float64(standardisedScore)
	n := float64(basicObjectCount)

	switch rulesetID {
	case RulesetOsu:
		return int64(math.Round((n*n*32.57 + 100000) * s / MaxScore))
	case RulesetTaiko:
		return int64(math.Round((n*1109 + 100000) * s / MaxScore))
	case RulesetCatch:
		return int64(math.Round(math.Pow(s/MaxScore*n, 2)*21.62 + s/10))
	case RulesetMania:
		return standardisedScore
	default:
		return standardisedScore
	}
}

// Ruleset ids, mirroring model.Beatmap.RulesetId / model.UserStatistics.RulesetId.
const (
	RulesetOsu   = 0
	RulesetTaiko = 1
	RulesetCatch = 2
	RulesetMania = 3
)
