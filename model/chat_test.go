package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInsertChatMessageIfAbsentIsIdempotent(t *testing.T) {
	setupTestDB(t)
	msg := &ChatMessage{Id: 5, ChannelId: 1, SenderId: 2, Content: "hi", Type: "plain", Timestamp: time.Now()}

	require.NoError(t, InsertChatMessageIfAbsent(msg))
	require.NoError(t, InsertChatMessageIfAbsent(msg))

	var count int64
	require.NoError(t, DB.Model(&ChatMessage{}).Where("message_id = ?", 5).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestMaxStoredMessageId(t *testing.T) {
	setupTestDB(t)

	id, err := MaxStoredMessageId()
	require.NoError(t, err)
	require.Zero(t, id)

	for _, mid := range []int64{3, 9, 6} {
		require.NoError(t, InsertChatMessageIfAbsent(&ChatMessage{
			Id: mid, ChannelId: 1, SenderId: 2, Content: "x", Type: "plain", Timestamp: time.Now(),
		}))
	}

	id, err = MaxStoredMessageId()
	require.NoError(t, err)
	require.Equal(t, int64(9), id)
}

func TestChannelMembership(t *testing.T) {
	setupTestDB(t)
	ch := &ChatChannel{Name: "osu", Type: ChatChannelPublic}
	require.NoError(t, CreateChannel(ch))

	require.NoError(t, JoinChannel(ch.Id, 7))
	require.NoError(t, JoinChannel(ch.Id, 7)) // repeated join is a no-op

	members, err := GetChannelMembersOf(ch.Id)
	require.NoError(t, err)
	require.Len(t, members, 1)

	require.NoError(t, MarkChannelRead(ch.Id, 7, 42))
	channels, err := GetUserChannels(7)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, int64(42), channels[0].LastReadId)

	require.NoError(t, LeaveChannel(ch.Id, 7))
	members, err = GetChannelMembersOf(ch.Id)
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestSilence(t *testing.T) {
	setupTestDB(t)
	require.False(t, IsUserSilencedInChannel(1, 7))
	require.NoError(t, SilenceUserInChannel(1, 7))
	require.True(t, IsUserSilencedInChannel(1, 7))
}

func TestDailyChallengeStreaks(t *testing.T) {
	setupTestDB(t)
	day1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, RecordDailyChallengePlay(9, day1))
	// A second playthrough on the same date does not advance the streak.
	require.NoError(t, RecordDailyChallengePlay(9, day1.Add(2*time.Hour)))

	stats, err := GetDailyChallengeStats(9)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DailyStreakCurrent)

	require.NoError(t, RecordDailyChallengePlay(9, day1.Add(24*time.Hour)))
	stats, err = GetDailyChallengeStats(9)
	require.NoError(t, err)
	require.Equal(t, 2, stats.DailyStreakCurrent)
	require.Equal(t, 2, stats.DailyStreakBest)

	// Skipping a day resets the current streak but not the best.
	require.NoError(t, RecordDailyChallengePlay(9, day1.Add(4*24*time.Hour)))
	stats, err = GetDailyChallengeStats(9)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DailyStreakCurrent)
	require.Equal(t, 2, stats.DailyStreakBest)
}
