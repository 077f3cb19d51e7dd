package model

import (
	"time"

	"github.com/Laisky/errors/v2"
)

// Notification is polymorphic; Payload carries type-specific JSON.
type Notification struct {
	Id        uint      `json:"id" gorm:"primaryKey"`
	UserId    uint      `json:"user_id" gorm:"index"`
	Category  string    `json:"category" gorm:"type:varchar(32)"`
	Payload   string    `json:"details" gorm:"type:text"`
	Read      bool      `json:"is_read" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func CreateNotification(userID uint, category, payload string) error {
	return errors.Wrap(DB.Create(&Notification{UserId: userID, Category: category, Payload: payload}).Error, "create notification")
}

func GetUnreadNotifications(userID uint) ([]*Notification, error) {
	var rows []*Notification
	err := DB.Where("user_id = ? AND read = ?", userID, false).Order("id desc").Find(&rows).Error
	return rows, errors.Wrap(err, "get unread notifications")
}

func MarkNotificationsRead(userID uint, ids []uint) error {
	return errors.Wrap(DB.Model(&Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("read", true).Error, "mark notifications read")
}
