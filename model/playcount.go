package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// BeatmapPlaycount tracks how many times a user has played a beatmap, so
// playcount milestones can be detected without scanning Score.
type BeatmapPlaycount struct {
	Id        uint `json:"id" gorm:"primaryKey"`
	UserId    uint `json:"user_id" gorm:"uniqueIndex:idx_user_beatmap_playcount"`
	BeatmapId uint `json:"beatmap_id" gorm:"uniqueIndex:idx_user_beatmap_playcount;index"`
	Playcount int  `json:"playcount"`
}

// IncrementBeatmapPlaycount bumps the (userID, beatmapID) counter, creating
// the row on first play, and reports the new total.
func IncrementBeatmapPlaycount(userID, beatmapID uint) (int, error) {
	var row BeatmapPlaycount
	err := DB.Where("user_id = ? AND beatmap_id = ?", userID, beatmapID).First(&row).Error
	switch {
	case err == nil:
		row.Playcount++
		if saveErr := DB.Model(&row).Update("playcount", row.Playcount).Error; saveErr != nil {
			return 0, errors.Wrapf(saveErr, "increment playcount for user %d beatmap %d", userID, beatmapID)
		}
		return row.Playcount, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = BeatmapPlaycount{UserId: userID, BeatmapId: beatmapID, Playcount: 1}
		if createErr := DB.Create(&row).Error; createErr != nil {
			return 0, errors.Wrapf(createErr, "create playcount for user %d beatmap %d", userID, beatmapID)
		}
		return row.Playcount, nil
	default:
		return 0, errors.Wrapf(err, "load playcount for user %d beatmap %d", userID, beatmapID)
	}
}
