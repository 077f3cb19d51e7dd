package chat

import (
	"context"
	"fmt"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/model"
)

// pmChannelName is one of the two candidate names for a PM channel between
// a and b; DiscoverPM tries both orderings.
func pmChannelName(a, b uint) string {
	return fmt.Sprintf("pm_%d_%d", a, b)
}

// DiscoverOrCreatePM finds the existing PM channel between two users
// (trying both `pm_<a>_<b>` and `pm_<b>_<a>`), creating
// one if neither exists.
func DiscoverOrCreatePM(a, b uint) (*model.ChatChannel, error) {
	for _, name := range []string{pmChannelName(a, b), pmChannelName(b, a)} {
		if ch, err := model.GetChannelByName(name); err == nil {
			return ch, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	ch := &model.ChatChannel{Name: pmChannelName(a, b), Type: model.ChatChannelPM}
	if err := model.CreateChannel(ch); err != nil {
		return nil, errors.Wrap(err, "create pm channel")
	}
	if err := model.JoinChannel(ch.Id, a); err != nil {
		return nil, err
	}
	if err := model.JoinChannel(ch.Id, b); err != nil {
		return nil, err
	}
	return ch, nil
}

// CreateAnnouncementChannel creates a moderated ANNOUNCE channel, used by
// privileged broadcast tooling.
func CreateAnnouncementChannel(name, description string) (*model.ChatChannel, error) {
	ch := &model.ChatChannel{Name: name, Description: description, Type: model.ChatChannelAnnounce, Moderated: true}
	return ch, errors.Wrap(model.CreateChannel(ch), "create announcement channel")
}

// Join adds userID to channelID, both durably and on the live hub roster,
// and pushes a chat.channel.join event to the joining user. Restricted
// users cannot join.
func Join(h *Hub, channelID, userID uint) error {
	user, err := model.GetUserById(userID)
	if err != nil {
		return err
	}
	if user.IsRestricted() {
		return apperr.ErrRestrictedUser
	}

	if err := model.JoinChannel(channelID, userID); err != nil {
		return err
	}
	h.JoinLive(channelID, userID)
	h.Send(userID, map[string]any{"event": "chat.channel.join", "channel_id": channelID})
	return nil
}

// Leave removes userID from channelID, both durably and on the live hub
// roster, and pushes a chat.channel.part event.
func Leave(h *Hub, channelID, userID uint) error {
	if err := model.LeaveChannel(channelID, userID); err != nil {
		return err
	}
	h.LeaveLive(channelID, userID)
	h.Send(userID, map[string]any{"event": "chat.channel.part", "channel_id": channelID})
	return nil
}

// MarkRead advances userID's last-read marker for channelID.
func MarkRead(channelID, userID uint, messageID int64) error {
	return model.MarkChannelRead(channelID, userID, messageID)
}

// ChannelUpdate is one entry of GET /chat/updates's joined-channel listing.
type ChannelUpdate struct {
	Channel               *model.ChatChannel `json:"channel"`
	CurrentUserAttributes map[string]any     `json:"current_user_attributes"`
	LastReadId            int64              `json:"last_read_id"`
	LastMessageId         int64              `json:"last_message_id"`
}

// Updates builds the /chat/updates response for userID: every joined
// channel plus read/last-message markers.
func Updates(ctx context.Context, userID uint) ([]*ChannelUpdate, error) {
	memberships, err := model.GetUserChannels(userID)
	if err != nil {
		return nil, err
	}

	updates := make([]*ChannelUpdate, 0, len(memberships))
	for _, m := range memberships {
		ch, err := model.GetChannel(m.ChannelId)
		if err != nil {
			continue
		}
		updates = append(updates, &ChannelUpdate{
			Channel: ch,
			CurrentUserAttributes: map[string]any{
				"can_message": !model.IsUserSilencedInChannel(m.ChannelId, userID),
			},
			LastReadId:    m.LastReadId,
			LastMessageId: lastChannelMessageId(ctx, m.ChannelId),
		})
	}
	return updates, nil
}

// lastChannelMessageId prefers the live Redis marker and falls back to the
// durable store's max id when the cache is unavailable or cold.
func lastChannelMessageId(ctx context.Context, channelID uint) int64 {
	if common.IsRedisEnabled() {
		if v, err := common.RChat.Get(ctx, lastMsgKey(channelID)).Int64(); err == nil {
			return v
		}
	}
	id, _ := model.MaxChannelMessageId(channelID)
	return id
}
