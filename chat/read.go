package chat

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/Laisky/errors/v2"
	"github.com/go-redis/redis/v8"

	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/model"
)

// GetMessages implements the read path for (channel, limit,
// since, until): prefer the Redis sorted-set index, backfill from the
// relational store when the in-Redis slice can't satisfy the request on
// its own, and fall back to a store-only query on any Redis failure.
func GetMessages(ctx context.Context, channelID uint, limit int, since, until int64) ([]*Message, error) {
	if !common.IsRedisEnabled() {
		return messagesFromStore(channelID, since, until, limit)
	}

	msgs, err := messagesFromRedis(ctx, channelID, since, until, limit)
	if err != nil {
		common.LogRedisFailure("chat read", channelMessagesKey(channelID), err)
		return messagesFromStore(channelID, since, until, limit)
	}

	if len(msgs) < limit && since == 0 {
		backfilled, backfillErr := messagesFromStore(channelID, since, until, limit-len(msgs))
		if backfillErr == nil {
			msgs = mergeOlder(backfilled, msgs)
		}
	}
	return msgs, nil
}

func messagesFromRedis(ctx context.Context, channelID uint, since, until int64, limit int) ([]*Message, error) {
	min := "-inf"
	if since > 0 {
		min = strconv.FormatInt(since, 10)
	}
	max := "+inf"
	if until > 0 {
		max = strconv.FormatInt(until, 10)
	}

	keys, err := common.RChat.ZRangeByScore(ctx, channelMessagesKey(channelID), &redis.ZRangeBy{
		Min:   min,
		Max:   max,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "zrangebyscore channel messages")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	raws, err := common.RChat.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget message blobs")
	}

	msgs := make([]*Message, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue // blob expired between the ZRANGE and the MGET
		}
		var msg Message
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			continue
		}
		msgs = append(msgs, &msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Id < msgs[j].Id })
	return msgs, nil
}

func messagesFromStore(channelID uint, since, until int64, limit int) ([]*Message, error) {
	rows, err := model.GetChannelMessagesSince(channelID, since, limit)
	if err != nil {
		return nil, errors.Wrap(err, "load channel messages from store")
	}

	msgs := make([]*Message, 0, len(rows))
	for _, row := range rows {
		if until > 0 && row.Id > until {
			continue
		}
		msgs = append(msgs, &Message{
			Id:        row.Id,
			ChannelId: row.ChannelId,
			SenderId:  row.SenderId,
			Content:   row.Content,
			Type:      row.Type,
			UUID:      row.UUID,
			Timestamp: row.Timestamp,
		})
	}
	return msgs, nil
}

// mergeOlder prepends older (store-backfilled) messages before newer
// (Redis-resident) ones, de-duplicating by id.
func mergeOlder(older, newer []*Message) []*Message {
	seen := make(map[int64]struct{}, len(newer))
	for _, m := range newer {
		seen[m.Id] = struct{}{}
	}
	merged := make([]*Message, 0, len(older)+len(newer))
	for _, m := range older {
		if _, ok := seen[m.Id]; !ok {
			merged = append(merged, m)
		}
	}
	merged = append(merged, newer...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Id < merged[j].Id })
	return merged
}
