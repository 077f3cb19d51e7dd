package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aquareto/aquareto-server/chat"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
)

// ChatUpdates handles GET /chat/updates: the caller's joined channels with
// read markers, plus silence entries since the given id.
func ChatUpdates(c *gin.Context) {
	userID := middleware.CurrentUserId(c)

	updates, err := chat.Updates(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	sinceSilence, _ := strconv.ParseUint(c.Query("since_silence_id"), 10, 64)
	silences, err := model.RecentSilences(uint(sinceSilence))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"presence": updates,
		"silences": silences,
	})
}

// ChatAck handles POST /chat/ack: a lightweight keepalive that returns
// fresh silence entries so clients can drop messages from silenced users.
func ChatAck(c *gin.Context) {
	sinceSilence, _ := strconv.ParseUint(c.Query("since"), 10, 64)
	silences, err := model.RecentSilences(uint(sinceSilence))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"silences": silences})
}

// ListChannels handles GET /chat/channels: the public channel browser.
func ListChannels(c *gin.Context) {
	channels, err := model.GetPublicChannels()
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// CreateChannel handles POST /chat/channels. Only PM and ANNOUNCE channels
// can be created through the API; everything else is server-managed.
func CreateChannel(c *gin.Context) {
	var body struct {
		Type        string `json:"type" binding:"required"`
		TargetId    uint   `json:"target_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	userID := middleware.CurrentUserId(c)

	switch body.Type {
	case model.ChatChannelPM:
		if body.TargetId == 0 || body.TargetId == userID {
			middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "invalid_target"))
			return
		}
		if model.IsBlocked(body.TargetId, userID) {
			middleware.AbortWithError(c, apperr.New(apperr.KindAuthorization, "blocked"))
			return
		}
		ch, err := chat.DiscoverOrCreatePM(userID, body.TargetId)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ch)
	case model.ChatChannelAnnounce:
		caller, err := model.GetUserById(userID)
		if err != nil || !caller.HasPrivilege(model.PrivilegeMod) {
			middleware.AbortWithError(c, apperr.New(apperr.KindAuthorization, "forbidden"))
			return
		}
		ch, err := chat.CreateAnnouncementChannel(body.Name, body.Description)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ch)
	default:
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "unsupported_channel_type"))
	}
}

// JoinChannel handles PUT /chat/channels/{channel}/users/{user}. Users may
// only join themselves.
func JoinChannel(c *gin.Context) {
	channelID, userID, err := channelUserParams(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := chat.Join(chat.Default, channelID, userID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ch, err := model.GetChannel(channelID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// LeaveChannel handles DELETE /chat/channels/{channel}/users/{user}.
func LeaveChannel(c *gin.Context) {
	channelID, userID, err := channelUserParams(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := chat.Leave(chat.Default, channelID, userID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func channelUserParams(c *gin.Context) (channelID, userID uint, err error) {
	channelID, err = idParam(c, "channel")
	if err != nil {
		return 0, 0, err
	}
	userID, err = idParam(c, "user")
	if err != nil {
		return 0, 0, err
	}
	if userID != middleware.CurrentUserId(c) {
		return 0, 0, apperr.New(apperr.KindAuthorization, "forbidden")
	}
	return channelID, userID, nil
}

// SendChannelMessage handles POST /chat/channels/{channel}/messages.
func SendChannelMessage(c *gin.Context) {
	channelID, err := idParam(c, "channel")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	var body struct {
		Message string `json:"message" binding:"required"`
		UUID    string `json:"uuid"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}

	msg, err := chat.Send(c.Request.Context(), chat.Default, chat.SendRequest{
		ChannelId: channelID,
		SenderId:  middleware.CurrentUserId(c),
		Content:   body.Message,
		UUID:      body.UUID,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// GetChannelMessages handles GET /chat/channels/{channel}/messages.
func GetChannelMessages(c *gin.Context) {
	channelID, err := idParam(c, "channel")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	since, _ := strconv.ParseInt(c.Query("since"), 10, 64)
	until, _ := strconv.ParseInt(c.Query("until"), 10, 64)

	msgs, err := chat.GetMessages(c.Request.Context(), channelID, limit, since, until)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, enrichWithSenders(msgs))
}

// enrichWithSenders attaches each message's sender record, loading every
// distinct sender once per request.
func enrichWithSenders(msgs []*chat.Message) []gin.H {
	senders := map[uint]*model.User{}
	out := make([]gin.H, 0, len(msgs))
	for _, msg := range msgs {
		sender, ok := senders[msg.SenderId]
		if !ok {
			sender, _ = model.GetUserById(msg.SenderId)
			senders[msg.SenderId] = sender
		}
		out = append(out, gin.H{"message": msg, "sender": sender})
	}
	return out
}

// MarkChannelRead handles PUT /chat/channels/{channel}/mark-as-read/{message}.
func MarkChannelRead(c *gin.Context) {
	channelID, err := idParam(c, "channel")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	messageID, err := idParam(c, "message")
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := chat.MarkRead(channelID, middleware.CurrentUserId(c), int64(messageID)); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// NewPM handles POST /chat/new: discover-or-create the PM channel with the
// target and deliver the first message in one call.
func NewPM(c *gin.Context) {
	var body struct {
		TargetId uint   `json:"target_id" binding:"required"`
		Message  string `json:"message" binding:"required"`
		UUID     string `json:"uuid"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "validation_error"))
		return
	}
	userID := middleware.CurrentUserId(c)
	if body.TargetId == userID {
		middleware.AbortWithError(c, apperr.New(apperr.KindValidation, "invalid_target"))
		return
	}
	if model.IsBlocked(body.TargetId, userID) {
		middleware.AbortWithError(c, apperr.New(apperr.KindAuthorization, "blocked"))
		return
	}

	ch, err := chat.DiscoverOrCreatePM(userID, body.TargetId)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	msg, err := chat.Send(c.Request.Context(), chat.Default, chat.SendRequest{
		ChannelId: ch.Id,
		SenderId:  userID,
		Content:   body.Message,
		UUID:      body.UUID,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": ch, "message": msg})
}
