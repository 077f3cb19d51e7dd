package model

import (
	"github.com/Laisky/errors/v2"
)

// FavouriteBeatmapset marks a beatmapset as favourited by a user. The
// composite unique index makes repeated favourites a no-op at the store
// level.
type FavouriteBeatmapset struct {
	Id           uint `json:"id" gorm:"primaryKey"`
	UserId       uint `json:"user_id" gorm:"uniqueIndex:idx_favourite_user_set"`
	BeatmapsetId uint `json:"beatmapset_id" gorm:"uniqueIndex:idx_favourite_user_set"`
	CreatedAt    int64 `json:"created_at" gorm:"autoCreateTime"`
}

// FavouriteSet records userID favouriting setID; favouriting an
// already-favourited set is a no-op.
func FavouriteSet(userID, setID uint) error {
	err := DB.Create(&FavouriteBeatmapset{UserId: userID, BeatmapsetId: setID}).Error
	if err != nil && isDuplicateKeyError(err) {
		return nil
	}
	return errors.Wrap(err, "favourite beatmapset")
}

// UnfavouriteSet removes the favourite row; removing a non-favourite is a
// no-op.
func UnfavouriteSet(userID, setID uint) error {
	return errors.Wrap(DB.Where("user_id = ? AND beatmapset_id = ?", userID, setID).
		Delete(&FavouriteBeatmapset{}).Error, "unfavourite beatmapset")
}

// GetFavouriteSetIds lists setID favourites for userID, newest first.
func GetFavouriteSetIds(userID uint, limit, offset int) ([]uint, error) {
	var ids []uint
	err := DB.Model(&FavouriteBeatmapset{}).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Pluck("beatmapset_id", &ids).Error
	return ids, errors.Wrap(err, "list favourite beatmapsets")
}
