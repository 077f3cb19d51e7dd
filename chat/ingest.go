package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/logger"
	"github.com/aquareto/aquareto-server/eventhub"
	"github.com/aquareto/aquareto-server/model"
)

// Message is the wire/blob shape stored in Redis and broadcast to clients;
// it is also what the persistence worker decodes to build a ChatMessage row.
type Message struct {
	Id        int64     `json:"message_id"`
	ChannelId uint      `json:"channel_id"`
	SenderId  uint      `json:"sender_id"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	UUID      string    `json:"uuid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SendRequest is a chat.send event's payload.
type SendRequest struct {
	ChannelId uint
	SenderId  uint
	Content   string
	UUID      string
}

// Send implements the ingestion algorithm: validate, assign a
// globally monotonic id, write the Redis durability trail, broadcast, and
// emit an event. Post-broadcast bookkeeping failures are logged, not
// returned, mirroring the score pipeline's never-fail-the-caller rule for
// derived state.
func Send(ctx context.Context, h *Hub, req SendRequest) (*Message, error) {
	if len(req.Content) == 0 {
		return nil, apperr.New(apperr.KindValidation, "empty_message")
	}
	if len(req.Content) > config.ChatMessageMaxLength {
		return nil, apperr.New(apperr.KindValidation, "message_too_long")
	}
	if model.IsUserSilencedInChannel(req.ChannelId, req.SenderId) {
		return nil, apperr.New(apperr.KindAuthorization, "silenced")
	}

	channel, err := model.GetChannel(req.ChannelId)
	if err != nil {
		return nil, errors.Wrap(err, "load channel")
	}

	id, err := nextMessageID(ctx)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Id:        id,
		ChannelId: req.ChannelId,
		SenderId:  req.SenderId,
		Content:   req.Content,
		Type:      "action",
		UUID:      req.UUID,
		Timestamp: time.Now().UTC(),
	}
	if !strings.HasPrefix(req.Content, "!") {
		msg.Type = "plain"
	}

	if err := storeMessage(ctx, msg); err != nil {
		logger.Logger.Warn("chat message durability write failed", zap.Error(err), zap.Int64("message_id", id))
	}

	isBotCommand := channel.Type == model.ChatChannelPublic && strings.HasPrefix(req.Content, "!")
	if isBotCommand {
		h.Send(req.SenderId, msg)
	} else {
		h.Broadcast(req.ChannelId, msg)
	}

	if err := model.MarkChannelRead(req.ChannelId, req.SenderId, id); err != nil {
		logger.Logger.Warn("failed to advance sender's last-read marker", zap.Error(err))
	}

	if channel.Type == model.ChatChannelPM || channel.Type == model.ChatChannelTeam {
		notifyOfflineRecipients(req.ChannelId, req.SenderId, msg)
	}

	eventhub.Default.Publish(eventhub.TopicMessageSent, msg)
	return msg, nil
}

// storeMessage persists the Redis durability trail: the blob, the
// channel's sorted-set index (trimmed to the retention window), the
// pending-persistence queue, and the last-message marker.
func storeMessage(ctx context.Context, msg *Message) error {
	if !common.IsRedisEnabled() {
		return errors.New("redis disabled, skipping durability trail")
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal chat message")
	}

	blobKey := messageBlobKey(msg.ChannelId, msg.Id)
	pipe := common.RChat.TxPipeline()
	ttl := time.Duration(config.ChatMessageTTLDays) * 24 * time.Hour
	pipe.Set(ctx, blobKey, raw, ttl)
	pipe.ZAdd(ctx, channelMessagesKey(msg.ChannelId), &redis.Z{Score: float64(msg.Id), Member: blobKey})
	pipe.ZRemRangeByRank(ctx, channelMessagesKey(msg.ChannelId), 0, int64(-config.ChatChannelHistoryLimit)-1)
	pipe.RPush(ctx, pendingMessagesKey, blobKey)
	pipe.Set(ctx, lastMsgKey(msg.ChannelId), msg.Id, 0)
	pipe.Set(ctx, lastReadKey(msg.ChannelId, msg.SenderId), msg.Id, 0)
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "chat durability pipeline")
}

func notifyOfflineRecipients(channelID, senderID uint, msg *Message) {
	rows, rowsErr := model.GetChannelMembersOf(channelID)
	if rowsErr != nil {
		logger.Logger.Warn("failed to list channel members for offline notification", zap.Error(rowsErr))
		return
	}
	for _, member := range rows {
		if member.UserId == senderID {
			continue
		}
		payload, _ := json.Marshal(msg)
		if err := model.CreateNotification(member.UserId, "chat_message", string(payload)); err != nil {
			logger.Logger.Warn("failed to create chat notification", zap.Error(err), zap.Uint("user_id", member.UserId))
		}
	}
}
