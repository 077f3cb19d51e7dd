package model

import (
	"github.com/Laisky/errors/v2"
)

// RankingSort selects the ordering column for a ranking page
// (`GET /rankings/{ruleset}/{sort}`).
type RankingSort string

const (
	RankingSortPerformance RankingSort = "performance"
	RankingSortScore       RankingSort = "score"
)

func (s RankingSort) column() string {
	if s == RankingSortScore {
		return "ranked_score"
	}
	return "pp"
}

// GetRankingPage returns a page of UserStatistics ordered by sort for
// rulesetID, optionally restricted to countryCode (empty means global).
func GetRankingPage(rulesetID int, sort RankingSort, countryCode string, page, perPage int) ([]*UserStatistics, error) {
	q := DB.Model(&UserStatistics{}).Where("ruleset_id = ? AND is_ranked = ?", rulesetID, true)
	if countryCode != "" {
		q = q.Joins("JOIN users ON users.id = user_statistics.user_id").
			Where("users.country_code = ?", countryCode)
	}

	var rows []*UserStatistics
	err := q.Order(sort.column() + " DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&rows).Error
	return rows, errors.Wrap(err, "get ranking page")
}

// GetUserGlobalRank computes userID's 1-based position on the global
// ranking for rulesetID by counting rows that outrank it, used by profile
// views that need a live rank rather than the cached snapshot column.
func GetUserGlobalRank(userID uint, rulesetID int) (int, error) {
	stats, err := GetUserStatistics(userID, rulesetID)
	if err != nil {
		return 0, err
	}
	if stats.PP <= 0 {
		return 0, nil
	}

	var ahead int64
	err = DB.Model(&UserStatistics{}).
		Where("ruleset_id = ? AND is_ranked = ? AND pp > ?", rulesetID, true, stats.PP).
		Count(&ahead).Error
	if err != nil {
		return 0, errors.Wrap(err, "count users ahead on global rank")
	}
	return int(ahead) + 1, nil
}

// RankedUserCount reports how many ranked rows exist for rulesetID, used to
// bound pagination on the rankings endpoint.
func RankedUserCount(rulesetID int) (int64, error) {
	var count int64
	err := DB.Model(&UserStatistics{}).Where("ruleset_id = ? AND is_ranked = ?", rulesetID, true).Count(&count).Error
	return count, errors.Wrap(err, "count ranked users")
}

// SetCachedRanks persists the scheduler's daily snapshot of global/country
// rank onto the UserStatistics row, read back by profile/ranking views
// without recomputing the COUNT(*) query per request.
func SetCachedRanks(userID uint, rulesetID int, globalRank, countryRank *int) error {
	updates := map[string]any{"global_rank": globalRank, "country_rank": countryRank}
	return errors.Wrap(DB.Model(&UserStatistics{}).
		Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).
		Updates(updates).Error, "set cached ranks")
}

// CountryRankingRow is one aggregate row of the per-country ranking table.
type CountryRankingRow struct {
	CountryCode string  `json:"code" gorm:"column:country_code"`
	ActiveUsers int64   `json:"active_users"`
	PlayCount   int64   `json:"play_count"`
	RankedScore int64   `json:"ranked_score"`
	Performance float64 `json:"performance"`
}

// GetCountryRankings aggregates UserStatistics per country for rulesetID,
// ordered by summed pp descending.
func GetCountryRankings(rulesetID int) ([]*CountryRankingRow, error) {
	var rows []*CountryRankingRow
	err := DB.Model(&UserStatistics{}).
		Select("users.country_code AS country_code, "+
			"COUNT(*) AS active_users, "+
			"SUM(user_statistics.play_count) AS play_count, "+
			"SUM(user_statistics.ranked_score) AS ranked_score, "+
			"SUM(user_statistics.pp) AS performance").
		Joins("JOIN users ON users.id = user_statistics.user_id").
		Where("user_statistics.ruleset_id = ? AND user_statistics.is_ranked = ?", rulesetID, true).
		Group("users.country_code").
		Order("performance DESC").
		Find(&rows).Error
	return rows, errors.Wrap(err, "get country rankings")
}

// GetTeamRankings serves GET /rankings/{ruleset}/team. No team membership
// model exists in this deployment, so the table is always empty rather than
// a 404 (clients poll it unconditionally).
func GetTeamRankings(rulesetID int) ([]*CountryRankingRow, error) {
	_ = rulesetID
	return []*CountryRankingRow{}, nil
}

// AllRankedUserIdsForRuleset lists every user id with a nonzero-pp ranked
// row for rulesetID in pp-descending order, so the rank-history snapshot
// job can use the slice position as the global rank.
func AllRankedUserIdsForRuleset(rulesetID int) ([]uint, error) {
	var ids []uint
	err := DB.Model(&UserStatistics{}).
		Where("ruleset_id = ? AND is_ranked = ? AND pp > 0", rulesetID, true).
		Order("pp DESC").
		Pluck("user_id", &ids).Error
	return ids, errors.Wrap(err, "list ranked user ids")
}
