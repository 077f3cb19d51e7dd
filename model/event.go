package model

import "github.com/Laisky/errors/v2"

const (
	EventTypeAchievement      = "achievement"
	EventTypePlaycountMilestone = "beatmap_playcount"
	EventTypeRankGained       = "rank"
	EventTypeUsernameChange   = "username_change"
)

// Event is an entry in a user's public activity timeline.
type Event struct {
	Id        uint   `json:"id" gorm:"primaryKey"`
	UserId    uint   `json:"user_id" gorm:"index"`
	Type      string `json:"type" gorm:"type:varchar(32)"`
	Detail    string `json:"detail" gorm:"type:text"`
	CreatedAt int64  `json:"created_at" gorm:"autoCreateTime"`
}

func RecordEvent(userID uint, eventType, detail string) error {
	if err := DB.Create(&Event{UserId: userID, Type: eventType, Detail: detail}).Error; err != nil {
		return errors.Wrapf(err, "record event %s for user %d", eventType, userID)
	}
	return nil
}

func GetUserEvents(userID uint, limit int) ([]*Event, error) {
	var events []*Event
	err := DB.Where("user_id = ?", userID).Order("id desc").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list events for user %d", userID)
	}
	return events, nil
}
