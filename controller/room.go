package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/appctx"
	"github.com/aquareto/aquareto-server/chat"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/room"
	"github.com/aquareto/aquareto-server/score"
)

// CreateRoom handles POST /rooms.
func CreateRoom(c *gin.Context) {
	var body struct {
		Name      string `json:"name" binding:"required"`
		Category  string `json:"category"`
		Type      string `json:"type"`
		QueueMode string `json:"queue_mode"`
		Password  string `json:"password"`
		Playlist  []struct {
			BeatmapId    uint     `json:"beatmap_id"`
			RulesetId    int      `json:"ruleset_id"`
			RequiredMods []string `json:"required_mods"`
			AllowedMods  []string `json:"allowed_mods"`
		} `json:"playlist"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	if body.Category == "" {
		body.Category = model.RoomCategoryNormal
	}
	if body.Type == "" {
		body.Type = model.RoomTypeHeadToHead
	}
	if body.QueueMode == "" {
		body.QueueMode = model.MultiplayerQueueHostOnly
	}

	req := room.CreateRequest{
		HostId:    middleware.CurrentUserId(c),
		Name:      body.Name,
		Category:  body.Category,
		Type:      body.Type,
		QueueMode: body.QueueMode,
		Password:  body.Password,
	}
	for _, item := range body.Playlist {
		req.Playlist = append(req.Playlist, room.PlaylistItemRequest{
			BeatmapId:    item.BeatmapId,
			RulesetId:    item.RulesetId,
			RequiredMods: item.RequiredMods,
			AllowedMods:  item.AllowedMods,
		})
	}

	created, err := room.Create(req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

// ListRooms handles GET /rooms.
func ListRooms(c *gin.Context) {
	status := c.DefaultQuery("status", model.RoomStatusActive)
	category := c.Query("category")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rooms, err := model.ListRooms(status, category, limit)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// GetRoom handles GET /rooms/{id}: the room plus its playlist.
func GetRoom(c *gin.Context) {
	roomID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	r, err := model.GetRoom(roomID)
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "room_not_found"))
		return
	}
	playlist, err := model.GetRoomPlaylist(roomID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": r, "playlist": playlist})
}

// DeleteRoom handles DELETE /rooms/{id}: the host ends the room early.
func DeleteRoom(c *gin.Context) {
	roomID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	r, err := model.GetRoom(roomID)
	if err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindNotFound, "room_not_found"))
		return
	}
	if r.HostId != middleware.CurrentUserId(c) {
		middleware.AbortWithError(c, apperr.New(apperr.KindAuthorization, "not_host"))
		return
	}
	if err := room.RemoveUser(chat.Default, roomID, r.HostId); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// JoinRoom handles PUT /rooms/{id}/users/{uid}.
func JoinRoom(c *gin.Context) {
	roomID, userID, err := roomUserParams(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := room.AddUser(chat.Default, roomID, userID, body.Password); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LeaveRoom handles DELETE /rooms/{id}/users/{uid}.
func LeaveRoom(c *gin.Context) {
	roomID, userID, err := roomUserParams(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := room.RemoveUser(chat.Default, roomID, userID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func roomUserParams(c *gin.Context) (roomID, userID uint, err error) {
	roomID, err = idParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	userID, err = idParam(c, "uid")
	if err != nil {
		return 0, 0, err
	}
	if userID != middleware.CurrentUserId(c) {
		return 0, 0, apperr.New(apperr.KindAuthorization, "forbidden")
	}
	return roomID, userID, nil
}

// RoomLeaderboard handles GET /rooms/{id}/leaderboard.
func RoomLeaderboard(c *gin.Context) {
	roomID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	rows, err := room.Leaderboard(roomID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
}

// RoomEvents handles GET /rooms/{id}/events.
func RoomEvents(c *gin.Context) {
	roomID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	events, err := model.GetRoomEvents(roomID, 100)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// ReservePlaylistScoreToken handles POST /rooms/{id}/playlist/{pid}/scores,
// Phase A for a playlist item: same reservation flow as solo, with the room
// and item recorded on the token. The item must exist, belong to the room,
// and not be expired.
func ReservePlaylistScoreToken(c *gin.Context) {
	roomID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	itemID, err := idParam(c, "pid")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	item, err := playlistItemOf(roomID, itemID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	var body struct {
		RulesetId     int    `json:"ruleset_id"`
		BeatmapHash   string `json:"beatmap_hash"`
		VersionHash   string `json:"version_hash"`
		ClientVersion string `json:"client_version"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}

	token, err := score.ReserveToken(c.Request.Context(), score.ReserveRequest{
		UserId:             middleware.CurrentUserId(c),
		BeatmapId:          item.BeatmapId,
		RulesetId:          body.RulesetId,
		BeatmapHash:        body.BeatmapHash,
		ClientVersion:      body.ClientVersion,
		RulesetVersionHash: body.VersionHash,
		RoomId:             &roomID,
		PlaylistItemId:     &itemID,
	}, appctx.Fetcher)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// SubmitPlaylistScore handles PUT /rooms/{id}/playlist/{pid}/scores/{token},
// Phase B for a playlist item.
func SubmitPlaylistScore(c *gin.Context) {
	roomID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	itemID, err := idParam(c, "pid")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if _, err := playlistItemOf(roomID, itemID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	tokenID, err := idParam(c, "token")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	req, err := bindSubmitRequest(c, tokenID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	result, err := room.SubmitPlaylistScore(c.Request.Context(), req, itemID, appctx.Calculator, appctx.Fetcher)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PlaylistItemScores handles GET /rooms/{id}/playlist/{pid}/scores.
func PlaylistItemScores(c *gin.Context) {
	roomID, err := idParam(c, "id")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	itemID, err := idParam(c, "pid")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	rows, err := model.GetPlaylistItemScores(roomID, itemID, 50)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": rows})
}

func playlistItemOf(roomID, itemID uint) (*model.PlaylistItem, error) {
	items, err := model.GetRoomPlaylist(roomID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Id != itemID {
			continue
		}
		if item.ExpiresAt != nil && item.ExpiresAt.Before(time.Now()) {
			return nil, apperr.New(apperr.KindConflict, "playlist_item_expired")
		}
		return item, nil
	}
	return nil, apperr.New(apperr.KindNotFound, "playlist_item_not_found")
}
