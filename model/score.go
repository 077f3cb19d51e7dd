package model

import (
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// ScoreToken is Phase A's reservation; each token is redeemable at most
// once by the creating user.
type ScoreToken struct {
	Id             uint      `json:"id" gorm:"primaryKey"`
	UserId         uint      `json:"user_id" gorm:"index"`
	BeatmapId      uint      `json:"beatmap_id" gorm:"index"`
	RulesetId      int       `json:"ruleset_id"`
	RoomId         *uint     `json:"room_id,omitempty"`
	PlaylistItemId *uint     `json:"playlist_item_id,omitempty"`
	ScoreId        *uint     `json:"score_id,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Score is a single play. HitStatistics/MaximumStatistics/Mods are encoded
// as JSON text, GORM doesn't have a portable map column across
// SQLite/MySQL/Postgres without a dedicated type.
type Score struct {
	Id                uint       `json:"id" gorm:"primaryKey"`
	UserId            uint       `json:"user_id" gorm:"index:idx_score_user_beatmap"`
	BeatmapId         uint       `json:"beatmap_id" gorm:"index:idx_score_user_beatmap"`
	RulesetId         int        `json:"ruleset_id" gorm:"index"`
	ModsJSON          string     `json:"-" gorm:"column:mods;type:text"`
	Accuracy          float64    `json:"accuracy"`
	MaxCombo          int        `json:"max_combo"`
	TotalScore        int64      `json:"total_score"`
	ClassicTotalScore int64      `json:"classic_total_score"`
	Rank              string     `json:"rank" gorm:"type:varchar(4)"`
	Passed            bool       `json:"passed"`
	Perfect           bool       `json:"perfect"`
	HitStatisticsJSON string     `json:"-" gorm:"column:statistics;type:text"`
	MaxStatisticsJSON string     `json:"-" gorm:"column:maximum_statistics;type:text"`
	PP                *float64   `json:"pp"`
	PinnedOrder       int        `json:"pinned_order" gorm:"default:0"`
	EndedAt           time.Time  `json:"ended_at"`
	ReplayFilename    string     `json:"-"`
	BuildId           string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// BestScore is the single highest-total-score row per (user, beatmap, ruleset).
type BestScore struct {
	Id        uint `json:"id" gorm:"primaryKey"`
	UserId    uint `json:"user_id" gorm:"uniqueIndex:idx_best_user_beatmap_ruleset"`
	BeatmapId uint `json:"beatmap_id" gorm:"uniqueIndex:idx_best_user_beatmap_ruleset;index:idx_best_beatmap_ruleset"`
	RulesetId int  `json:"ruleset_id" gorm:"uniqueIndex:idx_best_user_beatmap_ruleset;index:idx_best_beatmap_ruleset"`
	ScoreId   uint `json:"score_id"`
	TotalScore int64 `json:"total_score"`
}

// PPBestScore keeps the top config.PPBestCount scores per (user, ruleset)
// that count toward the weighted pp total.
type PPBestScore struct {
	Id        uint    `json:"id" gorm:"primaryKey"`
	UserId    uint    `json:"user_id" gorm:"uniqueIndex:idx_ppbest_user_ruleset_score"`
	RulesetId int     `json:"ruleset_id" gorm:"uniqueIndex:idx_ppbest_user_ruleset_score"`
	ScoreId   uint    `json:"score_id" gorm:"uniqueIndex:idx_ppbest_user_ruleset_score"`
	PP        float64 `json:"pp"`
	Accuracy  float64 `json:"accuracy"`
}

func CreateScoreToken(userID, beatmapID uint, rulesetID int, roomID, playlistItemID *uint) (*ScoreToken, error) {
	token := &ScoreToken{
		UserId:         userID,
		BeatmapId:      beatmapID,
		RulesetId:      rulesetID,
		RoomId:         roomID,
		PlaylistItemId: playlistItemID,
	}
	if err := DB.Create(token).Error; err != nil {
		return nil, errors.Wrap(err, "create score token")
	}
	return token, nil
}

func GetScoreToken(id uint) (*ScoreToken, error) {
	var token ScoreToken
	if err := DB.First(&token, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "get score token %d", id)
	}
	return &token, nil
}

// RedeemScoreToken atomically claims a token for a new score; returns
// (false, nil) if the token was already redeemed so callers can fetch and
// return the existing score idempotently.
func RedeemScoreToken(tokenID uint, scoreID uint) (bool, error) {
	result := DB.Model(&ScoreToken{}).
		Where("id = ? AND score_id IS NULL", tokenID).
		Update("score_id", scoreID)
	if result.Error != nil {
		return false, errors.Wrapf(result.Error, "redeem score token %d", tokenID)
	}
	return result.RowsAffected == 1, nil
}

func CreateScore(score *Score) error {
	if err := DB.Create(score).Error; err != nil {
		return errors.Wrap(err, "create score")
	}
	return nil
}

func GetScore(id uint) (*Score, error) {
	var score Score
	if err := DB.First(&score, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "get score %d", id)
	}
	return &score, nil
}

// UpsertBestScore replaces BestScore[(user, beatmap, ruleset)] iff the new
// total score is higher than the stored one, reporting whether it changed.
func UpsertBestScore(tx *gorm.DB, userID, beatmapID uint, rulesetID int, scoreID uint, totalScore int64) (bool, error) {
	var existing BestScore
	err := tx.Where("user_id = ? AND beatmap_id = ? AND ruleset_id = ?", userID, beatmapID, rulesetID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = tx.Create(&BestScore{UserId: userID, BeatmapId: beatmapID, RulesetId: rulesetID, ScoreId: scoreID, TotalScore: totalScore}).Error
		return true, errors.Wrap(err, "insert best score")
	case err != nil:
		return false, errors.Wrap(err, "query best score")
	case totalScore > existing.TotalScore:
		existing.ScoreId = scoreID
		existing.TotalScore = totalScore
		return true, errors.Wrap(tx.Save(&existing).Error, "update best score")
	default:
		return false, nil
	}
}

// UpsertPPBestScore inserts the score into the user's pp-best set and trims
// it back down to keep, ordered by pp descending.
func UpsertPPBestScore(tx *gorm.DB, userID uint, rulesetID int, scoreID uint, pp, accuracy float64, keep int) error {
	if err := tx.Create(&PPBestScore{UserId: userID, RulesetId: rulesetID, ScoreId: scoreID, PP: pp, Accuracy: accuracy}).Error; err != nil {
		return errors.Wrap(err, "insert pp best score")
	}

	var ids []uint
	err := tx.Model(&PPBestScore{}).
		Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).
		Order("pp desc").
		Offset(keep).
		Pluck("id", &ids).Error
	if err != nil {
		return errors.Wrap(err, "list pp best overflow")
	}
	if len(ids) == 0 {
		return nil
	}
	return errors.Wrap(tx.Delete(&PPBestScore{}, ids).Error, "trim pp best overflow")
}

// GetPPBestScores returns a user's pp-weighted scores ordered best-first,
// for the Σ pp_i · 0.95^i recompute in score.RecalculateUserPP.
func GetPPBestScores(userID uint, rulesetID int) ([]*PPBestScore, error) {
	var rows []*PPBestScore
	err := DB.Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).Order("pp desc").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list pp best scores")
	}
	return rows, nil
}

// GetLeaderboard returns the top-N BestScore rows for a beatmap/ruleset, the
// raw rows only; country/friends/team filtering and mods equality are
// applied by score.Leaderboard which knows about User and Relationship.
func GetLeaderboard(beatmapID uint, rulesetID int, limit int) ([]*BestScore, error) {
	var rows []*BestScore
	err := DB.Where("beatmap_id = ? AND ruleset_id = ?", beatmapID, rulesetID).
		Order("total_score desc, score_id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "get leaderboard")
	}
	return rows, nil
}

// ScoreListType selects which slice of a user's scores GetUserScores returns.
type ScoreListType string

const (
	ScoreListBest   ScoreListType = "best"
	ScoreListFirsts ScoreListType = "firsts"
	ScoreListRecent ScoreListType = "recent"
	ScoreListPinned ScoreListType = "pinned"
)

// GetUserScores lists userID's scores for GET /users/{id}/scores/{type},
// optionally narrowed to rulesetID. "best" and "pinned" order by
// pinned_order/pp; "recent" orders newest-first.
func GetUserScores(userID uint, rulesetID *int, listType ScoreListType, limit, offset int) ([]*Score, error) {
	q := DB.Where("user_id = ?", userID)
	if rulesetID != nil {
		q = q.Where("ruleset_id = ?", *rulesetID)
	}

	switch listType {
	case ScoreListPinned:
		q = q.Where("pinned_order > 0").Order("pinned_order asc")
	case ScoreListFirsts:
		q = q.Joins("JOIN best_scores ON best_scores.score_id = scores.id").Order("scores.total_score desc")
	default:
		q = q.Order("ended_at desc")
	}

	var rows []*Score
	err := q.Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list user scores")
	}
	return rows, nil
}

// PinScore sets scoreID's display position among userID's pinned scores to
// the next free slot, or moves it there if already pinned. Ownership is the
// caller's responsibility.
func PinScore(userID, scoreID uint) error {
	var maxOrder int
	if err := DB.Model(&Score{}).Where("user_id = ?", userID).
		Select("COALESCE(MAX(pinned_order), 0)").Scan(&maxOrder).Error; err != nil {
		return errors.Wrap(err, "find max pinned order")
	}
	err := DB.Model(&Score{}).Where("id = ? AND user_id = ?", scoreID, userID).
		Update("pinned_order", maxOrder+1).Error
	return errors.Wrapf(err, "pin score %d", scoreID)
}

// UnpinScore clears scoreID's pinned position and closes the gap it leaves
// in userID's ordering.
func UnpinScore(userID, scoreID uint) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		var removed Score
		if err := tx.Where("id = ? AND user_id = ?", scoreID, userID).First(&removed).Error; err != nil {
			return errors.Wrapf(err, "get pinned score %d", scoreID)
		}
		if removed.PinnedOrder == 0 {
			return nil
		}
		if err := tx.Model(&Score{}).Where("id = ?", scoreID).Update("pinned_order", 0).Error; err != nil {
			return errors.Wrap(err, "clear pinned order")
		}
		return tx.Model(&Score{}).
			Where("user_id = ? AND pinned_order > ?", userID, removed.PinnedOrder).
			UpdateColumn("pinned_order", gorm.Expr("pinned_order - 1")).Error
	})
}

// ReorderPinnedScore moves scoreID to sit immediately after afterScoreID (or
// to the front, if afterScoreID is 0) in userID's pinned list, renumbering
// every affected slot to stay contiguous from 1.
func ReorderPinnedScore(userID, scoreID, afterScoreID uint) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		var pinned []*Score
		if err := tx.Where("user_id = ? AND pinned_order > 0", userID).
			Order("pinned_order asc").Find(&pinned).Error; err != nil {
			return errors.Wrap(err, "list pinned scores")
		}

		ordered := make([]uint, 0, len(pinned))
		for _, s := range pinned {
			if s.Id != scoreID {
				ordered = append(ordered, s.Id)
			}
		}

		insertAt := 0
		if afterScoreID != 0 {
			for i, id := range ordered {
				if id == afterScoreID {
					insertAt = i + 1
					break
				}
			}
		}
		ordered = append(ordered[:insertAt], append([]uint{scoreID}, ordered[insertAt:]...)...)

		for i, id := range ordered {
			if err := tx.Model(&Score{}).Where("id = ?", id).Update("pinned_order", i+1).Error; err != nil {
				return errors.Wrapf(err, "renumber pinned score %d", id)
			}
		}
		return nil
	})
}
