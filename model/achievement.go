package model

import (
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
)

// UserAchievement is a medal unlock; the unique index guarantees a given
// (user, medal) pair is granted at most once.
type UserAchievement struct {
	Id        uint      `json:"id" gorm:"primaryKey"`
	UserId    uint      `json:"user_id" gorm:"uniqueIndex:idx_user_achievement"`
	MedalId   string    `json:"medal_id" gorm:"type:varchar(64);uniqueIndex:idx_user_achievement"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// HasAchievement reports whether userID already holds medalID.
func HasAchievement(userID uint, medalID string) (bool, error) {
	var count int64
	err := DB.Model(&UserAchievement{}).Where("user_id = ? AND medal_id = ?", userID, medalID).Count(&count).Error
	return count > 0, errors.Wrap(err, "check achievement")
}

// GrantAchievement records medalID for userID, tolerating a race against a
// concurrent grant of the same medal via the unique index.
func GrantAchievement(userID uint, medalID string) (bool, error) {
	err := DB.Create(&UserAchievement{UserId: userID, MedalId: medalID}).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "grant achievement %s to user %d", medalID, userID)
	}
	return true, nil
}

// isDuplicateKeyError recognizes the unique-constraint violation text across
// SQLite, MySQL, and Postgres drivers without importing each driver's typed
// error, since the only thing callers need is "was this a dup".
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func GetUserAchievements(userID uint) ([]*UserAchievement, error) {
	var rows []*UserAchievement
	err := DB.Where("user_id = ?", userID).Order("created_at asc").Find(&rows).Error
	return rows, errors.Wrap(err, "list user achievements")
}
