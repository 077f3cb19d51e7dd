package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// BeatmapsetRating is one user's 1-10 vote on a set; ratings live in a
// join table rather than on the Beatmapset row itself.
type BeatmapsetRating struct {
	Id           uint  `json:"id" gorm:"primaryKey"`
	UserId       uint  `json:"user_id" gorm:"uniqueIndex:idx_set_rating"`
	BeatmapsetId uint  `json:"beatmapset_id" gorm:"uniqueIndex:idx_set_rating"`
	Rating       int   `json:"rating"`
	CreatedAt    int64 `json:"created_at" gorm:"autoCreateTime"`
}

// RateBeatmapset records or replaces the user's vote.
func RateBeatmapset(userID, setID uint, rating int) error {
	var row BeatmapsetRating
	err := DB.Where("user_id = ? AND beatmapset_id = ?", userID, setID).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(DB.Create(&BeatmapsetRating{UserId: userID, BeatmapsetId: setID, Rating: rating}).Error, "insert rating")
	case err != nil:
		return errors.Wrap(err, "query rating")
	default:
		return errors.Wrap(DB.Model(&row).Update("rating", rating).Error, "update rating")
	}
}

// BeatmapsetRatingSummary returns the vote count and mean rating for a set.
func BeatmapsetRatingSummary(setID uint) (count int64, average float64, err error) {
	err = DB.Model(&BeatmapsetRating{}).Where("beatmapset_id = ?", setID).Count(&count).Error
	if err != nil || count == 0 {
		return count, 0, errors.Wrap(err, "count beatmapset ratings")
	}
	var row struct{ Avg float64 }
	err = DB.Model(&BeatmapsetRating{}).
		Select("AVG(rating) AS avg").
		Where("beatmapset_id = ?", setID).
		Scan(&row).Error
	return count, row.Avg, errors.Wrap(err, "average beatmapset rating")
}
