package chat

import (
	"sync"

	"github.com/aquareto/aquareto-server/model"
)

// Hub tracks live connections and which channels each is currently joined
// to in memory: `{user -> socket}` and `{channel -> [users]}` maps.
// Channel membership here is the live, in-process roster
// used for broadcast; durable membership (ChatChannelMember) lives in the
// relational store and survives a disconnect.
type Hub struct {
	mu       sync.RWMutex
	sockets  map[uint][]*Connection // userID -> every open connection for that user
	channels map[uint]map[uint]struct{} // channelID -> set of joined userIDs
}

// NewHub constructs an empty Hub. One Hub is shared process-wide.
func NewHub() *Hub {
	return &Hub{
		sockets:  make(map[uint][]*Connection),
		channels: make(map[uint]map[uint]struct{}),
	}
}

// Register adds conn to the hub and joins it to the system channel, the
// chat.start handshake's default membership.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.sockets[conn.userID] = append(h.sockets[conn.userID], conn)
	h.joinLocked(model.SystemChannelId, conn.userID)
	h.mu.Unlock()
}

// Unregister removes conn from the hub and every channel's live roster.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.sockets[conn.userID]
	for i, c := range conns {
		if c == conn {
			h.sockets[conn.userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.sockets[conn.userID]) == 0 {
		delete(h.sockets, conn.userID)
	}
}

// JoinLive adds userID to channelID's in-process broadcast roster.
func (h *Hub) JoinLive(channelID, userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(channelID, userID)
}

func (h *Hub) joinLocked(channelID, userID uint) {
	if h.channels[channelID] == nil {
		h.channels[channelID] = make(map[uint]struct{})
	}
	h.channels[channelID][userID] = struct{}{}
}

// LeaveLive removes userID from channelID's in-process broadcast roster.
func (h *Hub) LeaveLive(channelID, userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels[channelID], userID)
}

// ChannelMembers returns a snapshot of userIDs currently joined to
// channelID, safe to iterate after the lock is released.
func (h *Hub) ChannelMembers(channelID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]uint, 0, len(h.channels[channelID]))
	for userID := range h.channels[channelID] {
		members = append(members, userID)
	}
	return members
}

// OnlineUserCount reports how many distinct users hold at least one open
// connection.
func (h *Hub) OnlineUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sockets)
}

// Send delivers payload to every open connection belonging to userID,
// dropping (but not failing the caller on) a write error to a single dead
// socket - the read loop for that socket will notice and unregister it.
func (h *Hub) Send(userID uint, payload any) {
	h.mu.RLock()
	conns := append([]*Connection(nil), h.sockets[userID]...)
	h.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.WriteJSON(payload)
	}
}

// Broadcast delivers payload to every live member of channelID except the
// userIDs listed in except.
func (h *Hub) Broadcast(channelID uint, payload any, except ...uint) {
	skip := make(map[uint]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}
	for _, userID := range h.ChannelMembers(channelID) {
		if _, ok := skip[userID]; ok {
			continue
		}
		h.Send(userID, payload)
	}
}

// Default is the process-wide chat hub wired up in main.
var Default = NewHub()
