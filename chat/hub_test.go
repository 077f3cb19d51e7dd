package chat

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquareto/aquareto-server/model"
)

func TestHubRegisterJoinsSystemChannel(t *testing.T) {
	h := NewHub()
	conn := &Connection{userID: 7}

	h.Register(conn)

	require.Equal(t, []uint{7}, h.ChannelMembers(model.SystemChannelId))
	require.Equal(t, 1, h.OnlineUserCount())
}

func TestHubJoinLeaveLive(t *testing.T) {
	h := NewHub()
	h.JoinLive(5, 1)
	h.JoinLive(5, 2)
	h.JoinLive(5, 2) // repeated join is a no-op

	members := h.ChannelMembers(5)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	require.Equal(t, []uint{1, 2}, members)

	h.LeaveLive(5, 1)
	require.Equal(t, []uint{2}, h.ChannelMembers(5))

	h.LeaveLive(5, 99) // leaving without joining is harmless
	require.Equal(t, []uint{2}, h.ChannelMembers(5))
}

func TestHubUnregisterDropsOnlyThatConnection(t *testing.T) {
	h := NewHub()
	first := &Connection{userID: 7}
	second := &Connection{userID: 7}
	h.Register(first)
	h.Register(second)
	require.Equal(t, 1, h.OnlineUserCount())

	h.Unregister(first)
	require.Equal(t, 1, h.OnlineUserCount())

	h.Unregister(second)
	require.Equal(t, 0, h.OnlineUserCount())
}

func TestHubMembersSnapshotIsIndependent(t *testing.T) {
	h := NewHub()
	h.JoinLive(5, 1)
	snapshot := h.ChannelMembers(5)
	h.JoinLive(5, 2)
	require.Len(t, snapshot, 1)
}
