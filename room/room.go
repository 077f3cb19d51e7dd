// Package room implements the multiplayer room lifecycle
// on top of model/room.go's data layer: create/join/leave orchestration,
// host transfer, chat channel wiring, and playlist scoring hooks.
package room

import (
	"context"
	"fmt"

	"github.com/Laisky/errors/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aquareto/aquareto-server/calculator"
	"github.com/aquareto/aquareto-server/chat"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/eventhub"
	"github.com/aquareto/aquareto-server/fetcher"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/score"
)

// CreateRequest describes a new room
type CreateRequest struct {
	HostId    uint
	Name      string
	Category  string
	Type      string
	QueueMode string
	Password  string
	Playlist  []PlaylistItemRequest
}

type PlaylistItemRequest struct {
	BeatmapId    uint
	RulesetId    int
	RequiredMods []string
	AllowedMods  []string
}

// Create builds a Room, its `mp_<room>` chat channel, and its playlist, and
// joins the host to both. Host must not be restricted; the playlist must
// be non-empty and every item must carry a beatmap id and ruleset id.
func Create(req CreateRequest) (*model.Room, error) {
	host, err := model.GetUserById(req.HostId)
	if err != nil {
		return nil, err
	}
	if host.IsRestricted() {
		return nil, apperr.ErrRestrictedUser
	}
	if len(req.Playlist) == 0 {
		return nil, apperr.New(apperr.KindValidation, "empty_playlist")
	}
	for _, item := range req.Playlist {
		if item.BeatmapId == 0 || item.RulesetId < 0 {
			return nil, apperr.New(apperr.KindValidation, "invalid_playlist_item")
		}
	}

	var passwordHash string
	if req.Password != "" {
		hashed, hashErr := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if hashErr != nil {
			return nil, errors.Wrap(hashErr, "hash room password")
		}
		passwordHash = string(hashed)
	}

	var created *model.Room
	err = model.DB.Transaction(func(tx *gorm.DB) error {
		r := &model.Room{
			Category:     req.Category,
			Name:         req.Name,
			HostId:       req.HostId,
			PasswordHash: passwordHash,
			Type:         req.Type,
			QueueMode:    req.QueueMode,
			Status:       model.RoomStatusActive,
		}
		if err := tx.Create(r).Error; err != nil {
			return errors.Wrap(err, "insert room")
		}

		channel := &model.ChatChannel{Name: fmt.Sprintf("mp_%d", r.Id), Type: model.ChatChannelMultiplayer}
		if err := tx.Create(channel).Error; err != nil {
			return errors.Wrap(err, "create room channel")
		}
		r.ChannelId = channel.Id
		if err := tx.Model(r).Update("channel_id", channel.Id).Error; err != nil {
			return err
		}

		items := make([]*model.PlaylistItem, len(req.Playlist))
		for i, item := range req.Playlist {
			items[i] = &model.PlaylistItem{
				RoomId:       r.Id,
				BeatmapId:    item.BeatmapId,
				RulesetId:    item.RulesetId,
				RequiredMods: item.RequiredMods,
				AllowedMods:  item.AllowedMods,
				OrderIndex:   i,
			}
		}
		if err := tx.Create(&items).Error; err != nil {
			return errors.Wrap(err, "create playlist items")
		}

		if _, err := model.UpsertParticipant(tx, r.Id, req.HostId); err != nil {
			return err
		}
		if err := tx.Create(&model.ChatChannelMember{ChannelId: channel.Id, UserId: req.HostId}).Error; err != nil {
			return errors.Wrap(err, "join host to room channel")
		}

		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = model.UpdateParticipantCount(created.Id, 1)
	_ = model.RecordMultiplayerEvent(created.Id, model.MultiplayerEventPlayerJoined, &req.HostId)
	chat.Default.JoinLive(created.ChannelId, req.HostId)
	return created, nil
}

// AddUser joins userID to roomID: verifies the room password when set,
// upserts the participant row, updates the participant count, and joins
// the room's chat channel.
func AddUser(h *chat.Hub, roomID, userID uint, password string) error {
	r, err := model.GetRoom(roomID)
	if err != nil {
		return err
	}
	if r.Status != model.RoomStatusActive {
		return apperr.ErrRoomEnded
	}
	if r.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password)) != nil {
			return apperr.New(apperr.KindAuthentication, "invalid_room_password")
		}
	}

	var isNew bool
	err = model.DB.Transaction(func(tx *gorm.DB) error {
		var joinErr error
		isNew, joinErr = model.UpsertParticipant(tx, roomID, userID)
		return joinErr
	})
	if err != nil {
		return err
	}

	count, err := model.ActiveParticipantCount(roomID)
	if err != nil {
		return err
	}
	if err := model.UpdateParticipantCount(roomID, int(count)); err != nil {
		return err
	}
	if err := chat.Join(h, r.ChannelId, userID); err != nil {
		return err
	}
	if isNew {
		_ = model.RecordMultiplayerEvent(roomID, model.MultiplayerEventPlayerJoined, &userID)
	}
	return nil
}

// RemoveUser marks userID as left; if userID was the host and other active
// participants remain, host is transferred to the earliest joiner,
// otherwise the room ends.
func RemoveUser(h *chat.Hub, roomID, userID uint) error {
	r, err := model.GetRoom(roomID)
	if err != nil {
		return err
	}

	err = model.DB.Transaction(func(tx *gorm.DB) error {
		return model.MarkParticipantLeft(tx, roomID, userID)
	})
	if err != nil {
		return err
	}
	_ = model.RecordMultiplayerEvent(roomID, model.MultiplayerEventPlayerLeft, &userID)
	_ = chat.Leave(h, r.ChannelId, userID)

	if r.HostId != userID {
		count, countErr := model.ActiveParticipantCount(roomID)
		if countErr == nil {
			_ = model.UpdateParticipantCount(roomID, int(count))
		}
		return nil
	}

	successor, err := model.EarliestActiveParticipant(roomID)
	if err != nil {
		return endRoom(roomID)
	}

	if err := model.TransferHost(roomID, successor.UserId); err != nil {
		return err
	}
	_ = model.RecordMultiplayerEvent(roomID, model.MultiplayerEventHostChanged, &successor.UserId)
	count, countErr := model.ActiveParticipantCount(roomID)
	if countErr == nil {
		_ = model.UpdateParticipantCount(roomID, int(count))
	}
	return nil
}

func endRoom(roomID uint) error {
	if err := model.EndRoom(roomID); err != nil {
		return err
	}
	return model.RecordMultiplayerEvent(roomID, model.MultiplayerEventRoomEnded, nil)
}

// SubmitPlaylistScore runs a playlist item's score submission through the
// ordinary score pipeline, then maintains PlaylistBestScore,
// ItemAttemptsCount, MultiplayerEvent, and (for DAILY_CHALLENGE rooms)
// DailyChallengeStats for DAILY_CHALLENGE rooms.
func SubmitPlaylistScore(ctx context.Context, req score.SubmitRequest, playlistItemID uint, calc *calculator.Client, fetch *fetcher.Fetcher) (*model.Score, error) {
	s, err := score.Submit(ctx, req, calc, fetch)
	if err != nil {
		return nil, err
	}

	token, err := model.GetScoreToken(req.TokenId)
	if err != nil || token.RoomId == nil {
		return s, nil
	}
	roomID := *token.RoomId

	if err := model.DB.Transaction(func(tx *gorm.DB) error {
		return model.UpsertPlaylistBestScore(tx, roomID, playlistItemID, req.UserId, s.Id, s.TotalScore)
	}); err != nil {
		return s, errors.Wrap(err, "update playlist best score")
	}
	if err := model.IncrementItemAttempts(roomID, req.UserId); err != nil {
		return s, errors.Wrap(err, "increment item attempts")
	}

	r, err := model.GetRoom(roomID)
	if err == nil && r.Category == model.RoomCategoryDailyChallenge {
		_ = model.RecordDailyChallengePlay(req.UserId, s.EndedAt)
	}

	eventhub.Default.Publish(eventhub.TopicScoreProcessed, s)
	return s, nil
}

// Leaderboard aggregates total score per user across every playlist item in
// roomID.
func Leaderboard(roomID uint) ([]*model.PlaylistBestScore, error) {
	return model.RoomLeaderboard(roomID)
}
