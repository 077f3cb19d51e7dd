package model

import (
	"time"

	"github.com/Laisky/errors/v2"
)

const (
	ChatChannelPublic      = "PUBLIC"
	ChatChannelPrivate     = "PRIVATE"
	ChatChannelMultiplayer = "MULTIPLAYER"
	ChatChannelSpectator   = "SPECTATOR"
	ChatChannelTemporary   = "TEMPORARY"
	ChatChannelPM          = "PM"
	ChatChannelGroup       = "GROUP"
	ChatChannelSystem      = "SYSTEM"
	ChatChannelAnnounce    = "ANNOUNCE"
	ChatChannelTeam        = "TEAM"
)

// SystemChannelId is the default channel every connection joins on
// chat.start.
const SystemChannelId = 1

type ChatChannel struct {
	Id           uint   `json:"channel_id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"uniqueIndex"`
	Description  string `json:"description"`
	Type         string `json:"type" gorm:"type:varchar(16);index"`
	Icon         string `json:"icon"`
	Moderated    bool   `json:"moderated" gorm:"default:false"`
	CreatedAt    int64  `json:"-" gorm:"autoCreateTime"`
}

// ChatChannelMember tracks who has joined which channel, so chat/updates can
// list the caller's channels without scanning every channel's roster.
type ChatChannelMember struct {
	Id         uint  `json:"id" gorm:"primaryKey"`
	ChannelId  uint  `json:"channel_id" gorm:"uniqueIndex:idx_channel_member"`
	UserId     uint  `json:"user_id" gorm:"uniqueIndex:idx_channel_member;index"`
	LastReadId int64 `json:"last_read_id" gorm:"default:0"`
	JoinedAt   int64 `json:"-" gorm:"autoCreateTime"`
}

// SilencedUser marks a (user, channel) pair as read-only.
type SilencedUser struct {
	Id        uint  `json:"id" gorm:"primaryKey"`
	ChannelId uint  `json:"channel_id" gorm:"uniqueIndex:idx_silenced"`
	UserId    uint  `json:"user_id" gorm:"uniqueIndex:idx_silenced"`
	CreatedAt int64 `json:"created_at" gorm:"autoCreateTime"`
}

// ChatMessage is the durable copy written by the persistence worker; the
// authoritative near-real-time copy lives in Redis until then.
type ChatMessage struct {
	Id         int64     `json:"message_id" gorm:"column:message_id;primaryKey;autoIncrement:false"`
	ChannelId  uint      `json:"channel_id" gorm:"index:idx_message_channel"`
	SenderId   uint      `json:"sender_id" gorm:"index"`
	Content    string    `json:"content" gorm:"type:text"`
	Type       string    `json:"type" gorm:"type:varchar(16)"`
	UUID       string    `json:"uuid,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func GetChannelByName(name string) (*ChatChannel, error) {
	var ch ChatChannel
	if err := DB.Where("name = ?", name).First(&ch).Error; err != nil {
		return nil, errors.Wrapf(err, "get channel %q", name)
	}
	return &ch, nil
}

func GetChannel(id uint) (*ChatChannel, error) {
	var ch ChatChannel
	if err := DB.First(&ch, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "get channel %d", id)
	}
	return &ch, nil
}

func CreateChannel(ch *ChatChannel) error {
	return errors.Wrap(DB.Create(ch).Error, "create channel")
}

func JoinChannel(channelID, userID uint) error {
	return errors.Wrap(DB.Where(ChatChannelMember{ChannelId: channelID, UserId: userID}).
		FirstOrCreate(&ChatChannelMember{ChannelId: channelID, UserId: userID}).Error, "join channel")
}

func LeaveChannel(channelID, userID uint) error {
	return errors.Wrap(DB.Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&ChatChannelMember{}).Error, "leave channel")
}

func GetUserChannels(userID uint) ([]*ChatChannelMember, error) {
	var rows []*ChatChannelMember
	err := DB.Where("user_id = ?", userID).Find(&rows).Error
	return rows, errors.Wrap(err, "list user channels")
}

// GetChannelMembersOf lists every member of channelID, used to find offline
// PM/team recipients that need a persistent Notification row.
func GetChannelMembersOf(channelID uint) ([]*ChatChannelMember, error) {
	var rows []*ChatChannelMember
	err := DB.Where("channel_id = ?", channelID).Find(&rows).Error
	return rows, errors.Wrap(err, "list channel members")
}

func MarkChannelRead(channelID, userID uint, messageID int64) error {
	return errors.Wrap(DB.Model(&ChatChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Update("last_read_id", messageID).Error, "mark channel read")
}

func IsUserSilencedInChannel(channelID, userID uint) bool {
	var count int64
	DB.Model(&SilencedUser{}).Where("channel_id = ? AND user_id = ?", channelID, userID).Count(&count)
	return count > 0
}

func SilenceUserInChannel(channelID, userID uint) error {
	return errors.Wrap(DB.Where(SilencedUser{ChannelId: channelID, UserId: userID}).
		FirstOrCreate(&SilencedUser{ChannelId: channelID, UserId: userID}).Error, "silence user in channel")
}

// InsertChatMessageIfAbsent is the persistence worker's idempotent write,
// it tolerates being handed an id it already durably stored.
func InsertChatMessageIfAbsent(msg *ChatMessage) error {
	var count int64
	DB.Model(&ChatMessage{}).Where("message_id = ?", msg.Id).Count(&count)
	if count > 0 {
		return nil
	}
	return errors.Wrap(DB.Create(msg).Error, "insert chat message")
}

// MaxStoredMessageId supports priming the global message id counter at
// startup to max(Redis counter, max(ChatMessage.message_id)).
func MaxStoredMessageId() (int64, error) {
	var maxID int64
	err := DB.Model(&ChatMessage{}).Select("COALESCE(MAX(message_id), 0)").Scan(&maxID).Error
	return maxID, errors.Wrap(err, "max stored message id")
}

// MaxChannelMessageId returns the highest durably stored message id for
// channelID, used to populate `last_message_id` in /chat/updates.
func MaxChannelMessageId(channelID uint) (int64, error) {
	var maxID int64
	err := DB.Model(&ChatMessage{}).Where("channel_id = ?", channelID).
		Select("COALESCE(MAX(message_id), 0)").Scan(&maxID).Error
	return maxID, errors.Wrap(err, "max channel message id")
}

func GetChannelMessagesSince(channelID uint, sinceID int64, limit int) ([]*ChatMessage, error) {
	var rows []*ChatMessage
	err := DB.Where("channel_id = ? AND message_id > ?", channelID, sinceID).
		Order("message_id asc").Limit(limit).Find(&rows).Error
	return rows, errors.Wrap(err, "get channel messages since")
}

// GetPublicChannels lists the joinable PUBLIC channels for the channel
// browser.
func GetPublicChannels() ([]*ChatChannel, error) {
	var channels []*ChatChannel
	err := DB.Where("type = ?", ChatChannelPublic).Order("id ASC").Find(&channels).Error
	return channels, errors.Wrap(err, "list public channels")
}

// RecentSilences returns silence rows with id greater than sinceID, for
// the /chat/updates and /chat/ack silence feeds.
func RecentSilences(sinceID uint) ([]*SilencedUser, error) {
	var rows []*SilencedUser
	err := DB.Where("id > ?", sinceID).Order("id ASC").Limit(100).Find(&rows).Error
	return rows, errors.Wrap(err, "list recent silences")
}
