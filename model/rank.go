package model

import (
	"time"

	"github.com/Laisky/errors/v2"
)

// RankHistory is a daily snapshot of a user's global rank, written by the
// scheduler and read by profile rank charts.
type RankHistory struct {
	Id        uint      `json:"id" gorm:"primaryKey"`
	UserId    uint      `json:"user_id" gorm:"uniqueIndex:idx_rank_history_day"`
	RulesetId int       `json:"ruleset_id" gorm:"uniqueIndex:idx_rank_history_day"`
	Date      time.Time `json:"date" gorm:"uniqueIndex:idx_rank_history_day"`
	Rank      int       `json:"rank"`
}

// RankTop records a user's best-ever global rank per ruleset.
type RankTop struct {
	Id        uint `json:"id" gorm:"primaryKey"`
	UserId    uint `json:"user_id" gorm:"uniqueIndex:idx_rank_top"`
	RulesetId int  `json:"ruleset_id" gorm:"uniqueIndex:idx_rank_top"`
	BestRank  int  `json:"best_rank"`
}

func RecordRankHistory(userID uint, rulesetID int, day time.Time, rank int) error {
	day = day.Truncate(24 * time.Hour)
	var existing RankHistory
	err := DB.Where("user_id = ? AND ruleset_id = ? AND date = ?", userID, rulesetID, day).First(&existing).Error
	if err == nil {
		return nil
	}
	return errors.Wrap(DB.Create(&RankHistory{UserId: userID, RulesetId: rulesetID, Date: day, Rank: rank}).Error, "record rank history")
}

// UpdateRankTop sets BestRank if rank is an improvement (numerically lower).
func UpdateRankTop(userID uint, rulesetID int, rank int) error {
	var top RankTop
	err := DB.Where(RankTop{UserId: userID, RulesetId: rulesetID}).FirstOrCreate(&top, RankTop{UserId: userID, RulesetId: rulesetID, BestRank: rank}).Error
	if err != nil {
		return errors.Wrap(err, "init rank top")
	}
	if top.BestRank == 0 || rank < top.BestRank {
		return errors.Wrap(DB.Model(&top).Update("best_rank", rank).Error, "update rank top")
	}
	return nil
}

func GetRankHistory(userID uint, rulesetID int, days int) ([]*RankHistory, error) {
	var rows []*RankHistory
	err := DB.Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).
		Order("date desc").Limit(days).Find(&rows).Error
	return rows, errors.Wrap(err, "get rank history")
}
