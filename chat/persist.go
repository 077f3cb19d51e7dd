package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/logger"
	"github.com/aquareto/aquareto-server/model"
)

// RunPersistenceWorker loops forever draining the pending_messages queue
// into durable ChatMessage rows: pop
// up to config.ChatPersistenceBatchSize ids (blocking with a 1s timeout for
// the first one), read each blob, and insert idempotently. Exits when ctx
// is cancelled.
func RunPersistenceWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !common.IsRedisEnabled() {
			time.Sleep(time.Second)
			continue
		}

		keys, err := popPendingBatch(ctx)
		if err != nil {
			logger.Logger.Warn("chat persistence worker pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(keys) == 0 {
			continue
		}

		for _, key := range keys {
			if err := persistOne(ctx, key); err != nil {
				logger.Logger.Warn("chat persistence worker failed to persist message", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

// popPendingBatch blocks up to 1s for the first pending message id, then
// drains up to ChatPersistenceBatchSize-1 more without blocking.
func popPendingBatch(ctx context.Context) ([]string, error) {
	timeout := time.Duration(config.ChatPersistencePollTimeoutSeconds) * time.Second
	first, err := common.RChat.BLPop(ctx, timeout, pendingMessagesKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "blpop pending messages")
	}

	// BLPop returns [key, value]; we want the value.
	keys := []string{first[1]}
	for len(keys) < config.ChatPersistenceBatchSize {
		val, popErr := common.RChat.LPop(ctx, pendingMessagesKey).Result()
		if errors.Is(popErr, redis.Nil) {
			break
		}
		if popErr != nil {
			return keys, errors.Wrap(popErr, "lpop pending messages")
		}
		keys = append(keys, val)
	}
	return keys, nil
}

func persistOne(ctx context.Context, blobKey string) error {
	raw, err := common.RChat.Get(ctx, blobKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil // blob already expired, nothing to persist
	}
	if err != nil {
		return errors.Wrap(err, "get message blob")
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return errors.Wrap(err, "decode message blob")
	}

	return model.InsertChatMessageIfAbsent(&model.ChatMessage{
		Id:        msg.Id,
		ChannelId: msg.ChannelId,
		SenderId:  msg.SenderId,
		Content:   msg.Content,
		Type:      msg.Type,
		UUID:      msg.UUID,
		Timestamp: msg.Timestamp,
	})
}
