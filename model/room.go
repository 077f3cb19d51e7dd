package model

import (
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

const (
	RoomCategoryNormal         = "NORMAL"
	RoomCategoryRealtime       = "REALTIME"
	RoomCategoryPlaylists      = "PLAYLISTS"
	RoomCategoryDailyChallenge = "DAILY_CHALLENGE"

	RoomTypeHeadToHead   = "HeadToHead"
	RoomTypeTeamVersus   = "TeamVersus"
	RoomTypePlaylists    = "Playlists"
	RoomTypeMatchmaking  = "Matchmaking"

	RoomStatusIdle   = "idle"
	RoomStatusActive = "active"

	MultiplayerQueueHostOnly = "host_only"
	MultiplayerQueueAllPlayers = "all_players"
)

type Room struct {
	Id               uint      `json:"id" gorm:"primaryKey"`
	Category         string    `json:"category" gorm:"type:varchar(20)"`
	Name             string    `json:"name"`
	HostId           uint      `json:"host_id" gorm:"index"`
	PasswordHash     string    `json:"-"`
	Type             string    `json:"type" gorm:"type:varchar(20)"`
	QueueMode        string    `json:"queue_mode" gorm:"type:varchar(20)"`
	Status           string    `json:"status" gorm:"type:varchar(10);default:'active'"`
	ParticipantCount int       `json:"participant_count" gorm:"default:0"`
	ChannelId        uint      `json:"channel_id"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
}

// PlaylistItem is one map entry in a room's queue.
type PlaylistItem struct {
	Id            uint       `json:"id" gorm:"primaryKey"`
	RoomId        uint       `json:"room_id" gorm:"index"`
	BeatmapId     uint       `json:"beatmap_id"`
	RulesetId     int        `json:"ruleset_id"`
	RequiredMods  StringList `json:"required_mods" gorm:"type:text"`
	AllowedMods   StringList `json:"allowed_mods" gorm:"type:text"`
	OrderIndex    int        `json:"playlist_order"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// RoomParticipant tracks join/leave history for host-transfer logic.
type RoomParticipant struct {
	Id       uint       `json:"id" gorm:"primaryKey"`
	RoomId   uint       `json:"room_id" gorm:"uniqueIndex:idx_room_participant"`
	UserId   uint       `json:"user_id" gorm:"uniqueIndex:idx_room_participant"`
	JoinedAt time.Time  `json:"joined_at" gorm:"autoCreateTime"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

// ItemAttempt aggregates per (user, room) attempt counts.
type ItemAttempt struct {
	Id      uint `json:"id" gorm:"primaryKey"`
	RoomId  uint `json:"room_id" gorm:"uniqueIndex:idx_item_attempt"`
	UserId  uint `json:"user_id" gorm:"uniqueIndex:idx_item_attempt"`
	Attempts int `json:"attempts" gorm:"default:0"`
}

// PlaylistBestScore is the best total score per (room, playlist item, user).
type PlaylistBestScore struct {
	Id             uint  `json:"id" gorm:"primaryKey"`
	RoomId         uint  `json:"room_id" gorm:"uniqueIndex:idx_playlist_best"`
	PlaylistItemId uint  `json:"playlist_item_id" gorm:"uniqueIndex:idx_playlist_best"`
	UserId         uint  `json:"user_id" gorm:"uniqueIndex:idx_playlist_best"`
	ScoreId        uint  `json:"score_id"`
	TotalScore     int64 `json:"total_score"`
}

const (
	MultiplayerEventHostChanged = "host_changed"
	MultiplayerEventPlayerJoined = "player_joined"
	MultiplayerEventPlayerLeft = "player_left"
	MultiplayerEventRoomEnded = "room_ended"
)

type MultiplayerEvent struct {
	Id        uint      `json:"id" gorm:"primaryKey"`
	RoomId    uint      `json:"room_id" gorm:"index"`
	Type      string    `json:"type" gorm:"type:varchar(32)"`
	UserId    *uint     `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// DailyChallengeStats tracks daily-challenge participation:
// daily/weekly streak bookkeeping skipped when a playthrough on the same
// date is already recorded.
type DailyChallengeStats struct {
	Id              uint       `json:"id" gorm:"primaryKey"`
	UserId          uint       `json:"user_id" gorm:"uniqueIndex"`
	DailyStreakCurrent int     `json:"daily_streak_current" gorm:"default:0"`
	DailyStreakBest    int     `json:"daily_streak_best" gorm:"default:0"`
	WeeklyStreakCurrent int    `json:"weekly_streak_current" gorm:"default:0"`
	WeeklyStreakBest    int    `json:"weekly_streak_best" gorm:"default:0"`
	LastPlayedDate  *time.Time `json:"last_played_date,omitempty"`
}

func CreateRoom(room *Room) error {
	return errors.Wrap(DB.Create(room).Error, "create room")
}

func GetRoom(id uint) (*Room, error) {
	var room Room
	if err := DB.First(&room, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "get room %d", id)
	}
	return &room, nil
}

func CreatePlaylistItems(items []*PlaylistItem) error {
	if len(items) == 0 {
		return errors.New("playlist cannot be empty")
	}
	return errors.Wrap(DB.Create(&items).Error, "create playlist items")
}

func GetRoomPlaylist(roomID uint) ([]*PlaylistItem, error) {
	var items []*PlaylistItem
	err := DB.Where("room_id = ?", roomID).Order("order_index asc").Find(&items).Error
	return items, errors.Wrap(err, "get room playlist")
}

// UpsertParticipant clears a prior left_at on repeated joins and reports
// whether this is a brand new participant row.
func UpsertParticipant(tx *gorm.DB, roomID, userID uint) (bool, error) {
	var existing RoomParticipant
	err := tx.Where("room_id = ? AND user_id = ?", roomID, userID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return true, errors.Wrap(tx.Create(&RoomParticipant{RoomId: roomID, UserId: userID}).Error, "insert participant")
	case err != nil:
		return false, errors.Wrap(err, "query participant")
	default:
		existing.LeftAt = nil
		return false, errors.Wrap(tx.Save(&existing).Error, "rejoin participant")
	}
}

func MarkParticipantLeft(tx *gorm.DB, roomID, userID uint) error {
	return errors.Wrap(tx.Model(&RoomParticipant{}).
		Where("room_id = ? AND user_id = ? AND left_at IS NULL", roomID, userID).
		Update("left_at", time.Now()).Error, "mark participant left")
}

// EarliestActiveParticipant is used for host transfer when the host leaves.
func EarliestActiveParticipant(roomID uint) (*RoomParticipant, error) {
	var p RoomParticipant
	err := DB.Where("room_id = ? AND left_at IS NULL", roomID).Order("joined_at asc").First(&p).Error
	if err != nil {
		return nil, errors.Wrap(err, "find earliest active participant")
	}
	return &p, nil
}

func ActiveParticipantCount(roomID uint) (int64, error) {
	var count int64
	err := DB.Model(&RoomParticipant{}).Where("room_id = ? AND left_at IS NULL", roomID).Count(&count).Error
	return count, errors.Wrap(err, "count active participants")
}

func EndRoom(roomID uint) error {
	now := time.Now()
	return errors.Wrap(DB.Model(&Room{}).Where("id = ?", roomID).
		Updates(map[string]any{"status": RoomStatusIdle, "ends_at": now, "participant_count": 0}).Error, "end room")
}

func UpdateParticipantCount(roomID uint, count int) error {
	return errors.Wrap(DB.Model(&Room{}).Where("id = ?", roomID).Update("participant_count", count).Error, "update participant count")
}

func TransferHost(roomID, newHostID uint) error {
	return errors.Wrap(DB.Model(&Room{}).Where("id = ?", roomID).Update("host_id", newHostID).Error, "transfer host")
}

func RecordMultiplayerEvent(roomID uint, eventType string, userID *uint) error {
	return errors.Wrap(DB.Create(&MultiplayerEvent{RoomId: roomID, Type: eventType, UserId: userID}).Error, "record multiplayer event")
}

func IncrementItemAttempts(roomID, userID uint) error {
	return errors.Wrap(DB.Exec(
		`INSERT INTO item_attempts (room_id, user_id, attempts) VALUES (?, ?, 1)
		 ON CONFLICT(room_id, user_id) DO UPDATE SET attempts = attempts + 1`,
		roomID, userID).Error, "increment item attempts")
}

func UpsertPlaylistBestScore(tx *gorm.DB, roomID, itemID, userID, scoreID uint, totalScore int64) error {
	var existing PlaylistBestScore
	err := tx.Where("room_id = ? AND playlist_item_id = ? AND user_id = ?", roomID, itemID, userID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(tx.Create(&PlaylistBestScore{RoomId: roomID, PlaylistItemId: itemID, UserId: userID, ScoreId: scoreID, TotalScore: totalScore}).Error, "insert playlist best score")
	case err != nil:
		return errors.Wrap(err, "query playlist best score")
	case totalScore > existing.TotalScore:
		existing.ScoreId = scoreID
		existing.TotalScore = totalScore
		return errors.Wrap(tx.Save(&existing).Error, "update playlist best score")
	default:
		return nil
	}
}

func RoomLeaderboard(roomID uint) ([]*PlaylistBestScore, error) {
	var rows []*PlaylistBestScore
	err := DB.Where("room_id = ?", roomID).Order("total_score desc").Find(&rows).Error
	return rows, errors.Wrap(err, "room leaderboard")
}

func GetDailyChallengeStats(userID uint) (*DailyChallengeStats, error) {
	var stats DailyChallengeStats
	err := DB.Where(DailyChallengeStats{UserId: userID}).FirstOrCreate(&stats).Error
	return &stats, errors.Wrap(err, "get daily challenge stats")
}

// RecordDailyChallengePlay updates the streak counters unless a playthrough
// on playedDate was already recorded.
func RecordDailyChallengePlay(userID uint, playedDate time.Time) error {
	stats, err := GetDailyChallengeStats(userID)
	if err != nil {
		return err
	}
	day := playedDate.Truncate(24 * time.Hour)
	if stats.LastPlayedDate != nil && stats.LastPlayedDate.Equal(day) {
		return nil
	}
	if stats.LastPlayedDate != nil && day.Sub(*stats.LastPlayedDate) == 24*time.Hour {
		stats.DailyStreakCurrent++
	} else {
		stats.DailyStreakCurrent = 1
	}
	if stats.DailyStreakCurrent > stats.DailyStreakBest {
		stats.DailyStreakBest = stats.DailyStreakCurrent
	}
	stats.LastPlayedDate = &day
	return errors.Wrap(DB.Save(stats).Error, "record daily challenge play")
}

// ListRooms returns rooms filtered by status and category; empty filters
// match everything. Newest rooms first.
func ListRooms(status, category string, limit int) ([]*Room, error) {
	q := DB.Model(&Room{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var rooms []*Room
	err := q.Order("id DESC").Limit(limit).Find(&rooms).Error
	return rooms, errors.Wrap(err, "list rooms")
}

// GetRoomEvents returns roomID's multiplayer lifecycle entries in
// chronological order.
func GetRoomEvents(roomID uint, limit int) ([]*MultiplayerEvent, error) {
	var events []*MultiplayerEvent
	err := DB.Where("room_id = ?", roomID).Order("id ASC").Limit(limit).Find(&events).Error
	return events, errors.Wrapf(err, "get room %d events", roomID)
}

// GetPlaylistItemScores lists the recorded best scores for one playlist
// item, highest total score first.
func GetPlaylistItemScores(roomID, itemID uint, limit int) ([]*PlaylistBestScore, error) {
	var rows []*PlaylistBestScore
	err := DB.Where("room_id = ? AND playlist_item_id = ?", roomID, itemID).
		Order("total_score DESC").Limit(limit).Find(&rows).Error
	return rows, errors.Wrap(err, "get playlist item scores")
}
