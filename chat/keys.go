package chat

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/model"
)

const counterKey = "global_message_id_counter"

func messageBlobKey(channelID uint, id int64) string {
	return fmt.Sprintf("msg:%d:%d", channelID, id)
}

func channelMessagesKey(channelID uint) string {
	return fmt.Sprintf("channel:%d:messages", channelID)
}

const pendingMessagesKey = "pending_messages"

func lastMsgKey(channelID uint) string {
	return fmt.Sprintf("chat:%d:last_msg", channelID)
}

func lastReadKey(channelID, userID uint) string {
	return fmt.Sprintf("chat:%d:last_read:%d", channelID, userID)
}

// primeMessageCounter sets the Redis global message id counter to
// max(current Redis value, max stored ChatMessage id), so ids stay
// strictly increasing across restarts. Call once during process startup.
func primeMessageCounter(ctx context.Context) error {
	stored, err := model.MaxStoredMessageId()
	if err != nil {
		return errors.Wrap(err, "load max stored message id")
	}
	if !common.IsRedisEnabled() {
		return nil
	}

	current := int64(0)
	if raw, getErr := common.RChat.Get(ctx, counterKey).Result(); getErr == nil {
		current, _ = strconv.ParseInt(raw, 10, 64)
	}
	if stored > current {
		return errors.Wrap(common.RChat.Set(ctx, counterKey, stored, 0).Err(), "prime message counter")
	}
	return nil
}

func nextMessageID(ctx context.Context) (int64, error) {
	id, err := common.RChat.Incr(ctx, counterKey).Result()
	return id, errors.Wrap(err, "incr global message id counter")
}
