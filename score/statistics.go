package score

import (
	"math"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/model"
)

const ppWeightDecay = 0.95

// weightedPP folds a pp-descending score list into the `Σ pp_i · 0.95^i`
// total plus the standard bonus term rewarding play volume, capped at
// 1000 plays the way every osu!-derived pp system caps it.
func weightedPP(scores []*model.PPBestScore, playCount int64) float64 {
	var total float64
	weight := 1.0
	for _, s := range scores {
		total += s.PP * weight
		weight *= ppWeightDecay
	}

	n := playCount
	if n > 1000 {
		n = 1000
	}
	bonus := 416.6667 * (1 - math.Pow(0.9994, float64(n)))
	return total + bonus
}

// weightedAccuracy folds a pp-descending score list into
// `Σ acc_i · 0.95^i / Σ 0.95^i`.
func weightedAccuracy(scores []*model.PPBestScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var numerator, denominator float64
	weight := 1.0
	for _, s := range scores {
		numerator += s.Accuracy * weight
		denominator += weight
		weight *= ppWeightDecay
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// RecalculateUserDerivedStats recomputes the pp-weighted total, weighted
// accuracy, and bracketed level for (userID, rulesetID), writing them back
// via model. Called after every PPBestScore/UserStatistics update in the
// score submission pipeline.
func RecalculateUserDerivedStats(userID uint, rulesetID int) error {
	best, err := model.GetPPBestScores(userID, rulesetID)
	if err != nil {
		return errors.Wrap(err, "load pp best scores")
	}

	stats, err := model.GetUserStatistics(userID, rulesetID)
	if err != nil {
		return errors.Wrap(err, "load user statistics")
	}

	pp := weightedPP(best, stats.PlayCount)
	if err := model.RecalculatePP(userID, rulesetID, pp); err != nil {
		return errors.Wrap(err, "persist recalculated pp")
	}

	accuracy := weightedAccuracy(best)

	level := LevelFromTotalScore(stats.TotalScore)
	whole := int(level)
	progress := int(math.Round((level - float64(whole)) * 100))

	if err := model.UpdateAccuracyAndLevel(userID, rulesetID, accuracy, whole, progress); err != nil {
		return errors.Wrap(err, "persist recalculated accuracy/level")
	}
	return nil
}
