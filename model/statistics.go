package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// Grade letter counters, stored as discrete columns rather than a map so
// leaderboard queries can ORDER BY them directly.
type UserStatistics struct {
	Id               uint  `json:"id" gorm:"primaryKey"`
	UserId           uint  `json:"user_id" gorm:"uniqueIndex:idx_user_ruleset"`
	RulesetId        int   `json:"ruleset_id" gorm:"uniqueIndex:idx_user_ruleset"`
	TotalScore       int64 `json:"total_score" gorm:"default:0"`
	RankedScore      int64 `json:"ranked_score" gorm:"default:0"`
	PP               float64 `json:"pp" gorm:"default:0"`
	PlayCount        int64 `json:"play_count" gorm:"default:0"`
	PlayTimeSeconds  int64 `json:"play_time" gorm:"default:0"`
	HitAccuracy      float64 `json:"hit_accuracy" gorm:"default:0"`
	MaxCombo         int   `json:"maximum_combo" gorm:"default:0"`
	TotalHits        int64 `json:"total_hits" gorm:"default:0"`
	CountSSH         int64 `json:"count_ssh" gorm:"default:0"`
	CountSS          int64 `json:"count_ss" gorm:"default:0"`
	CountSH          int64 `json:"count_sh" gorm:"default:0"`
	CountS           int64 `json:"count_s" gorm:"default:0"`
	CountA           int64 `json:"count_a" gorm:"default:0"`
	Level            int   `json:"level" gorm:"default:1"`
	LevelProgress    int   `json:"level_progress" gorm:"default:0"`
	GlobalRank       *int  `json:"global_rank,omitempty"`
	CountryRank      *int  `json:"country_rank,omitempty"`
	ReplaysWatched   int64 `json:"replays_watched_count" gorm:"default:0"`
	IsRanked         bool  `json:"is_ranked" gorm:"default:true"`
}

func GetUserStatistics(userID uint, rulesetID int) (*UserStatistics, error) {
	var stats UserStatistics
	err := DB.Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).First(&stats).Error
	if err != nil {
		return nil, errors.Wrapf(err, "get statistics for user %d ruleset %d", userID, rulesetID)
	}
	return &stats, nil
}

// ApplyScoreStatistics folds the outcome of a single submitted score into
// the owning user's per-ruleset row. Called from the score package after a
// BestScore/PPBestScore projection update succeeds.
func ApplyScoreStatistics(userID uint, rulesetID int, totalScoreDelta, playTimeDelta, totalHitsDelta int64, maxCombo int, accuracy float64, grade string) error {
	updates := map[string]any{
		"total_score": gorm.Expr("total_score + ?", totalScoreDelta),
		"play_count":  gorm.Expr("play_count + 1"),
		"play_time":   gorm.Expr("play_time + ?", playTimeDelta),
		"total_hits":  gorm.Expr("total_hits + ?", totalHitsDelta),
	}
	switch grade {
	case "XH":
		updates["count_ssh"] = gorm.Expr("count_ssh + 1")
	case "X":
		updates["count_ss"] = gorm.Expr("count_ss + 1")
	case "SH":
		updates["count_sh"] = gorm.Expr("count_sh + 1")
	case "S":
		updates["count_s"] = gorm.Expr("count_s + 1")
	case "A":
		updates["count_a"] = gorm.Expr("count_a + 1")
	}

	err := DB.Model(&UserStatistics{}).
		Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).
		Updates(updates).Error
	if err != nil {
		return errors.Wrapf(err, "apply score statistics for user %d ruleset %d", userID, rulesetID)
	}

	if err := DB.Model(&UserStatistics{}).
		Where("user_id = ? AND ruleset_id = ? AND maximum_combo < ?", userID, rulesetID, maxCombo).
		Update("maximum_combo", maxCombo).Error; err != nil {
		return errors.Wrap(err, "update maximum combo")
	}
	return nil
}

// RecalculatePP overwrites the cached pp total, called after the weighted
// pp recompute in score.RecalculateUserPP.
func RecalculatePP(userID uint, rulesetID int, pp float64) error {
	return DB.Model(&UserStatistics{}).
		Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).
		Update("pp", pp).Error
}

// UpdateAccuracyAndLevel overwrites the cached weighted accuracy and
// bracketed level/level_progress pair, called alongside RecalculatePP.
func UpdateAccuracyAndLevel(userID uint, rulesetID int, accuracy float64, level int, levelProgress int) error {
	err := DB.Model(&UserStatistics{}).
		Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).
		Updates(map[string]any{
			"hit_accuracy":   accuracy,
			"level":          level,
			"level_progress": levelProgress,
		}).Error
	return errors.Wrapf(err, "update accuracy/level for user %d ruleset %d", userID, rulesetID)
}

// IncrementRankedScore bumps ranked_score when a BestScore row changes,
// by the delta between the new and previous best total score.
func IncrementRankedScore(userID uint, rulesetID int, delta int64) error {
	if delta == 0 {
		return nil
	}
	err := DB.Model(&UserStatistics{}).
		Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).
		Update("ranked_score", gorm.Expr("ranked_score + ?", delta)).Error
	return errors.Wrapf(err, "increment ranked score for user %d ruleset %d", userID, rulesetID)
}
