package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seedStats(t *testing.T, userID uint, rulesetID int) {
	t.Helper()
	require.NoError(t, DB.Create(&UserStatistics{UserId: userID, RulesetId: rulesetID, IsRanked: true}).Error)
}

func TestApplyScoreStatistics(t *testing.T) {
	setupTestDB(t)
	seedStats(t, 1, 0)

	require.NoError(t, ApplyScoreStatistics(1, 0, 700000, 90, 350, 500, 0.98, "S"))

	stats, err := GetUserStatistics(1, 0)
	require.NoError(t, err)
	require.Equal(t, int64(700000), stats.TotalScore)
	require.Equal(t, int64(1), stats.PlayCount)
	require.Equal(t, int64(90), stats.PlayTimeSeconds)
	require.Equal(t, int64(350), stats.TotalHits)
	require.Equal(t, 500, stats.MaxCombo)
	require.Equal(t, int64(1), stats.CountS)

	// A worse combo does not regress the stored maximum.
	require.NoError(t, ApplyScoreStatistics(1, 0, 100000, 30, 50, 200, 0.8, "A"))
	stats, err = GetUserStatistics(1, 0)
	require.NoError(t, err)
	require.Equal(t, 500, stats.MaxCombo)
	require.Equal(t, int64(2), stats.PlayCount)
	require.Equal(t, int64(1), stats.CountA)
}

func TestIncrementRankedScoreDelta(t *testing.T) {
	setupTestDB(t)
	seedStats(t, 1, 0)

	require.NoError(t, IncrementRankedScore(1, 0, 600000))
	require.NoError(t, IncrementRankedScore(1, 0, 100000)) // overtake delta
	require.NoError(t, IncrementRankedScore(1, 0, 0))      // no-op

	stats, err := GetUserStatistics(1, 0)
	require.NoError(t, err)
	require.Equal(t, int64(700000), stats.RankedScore)
}

func TestReplayWatchFlush(t *testing.T) {
	setupTestDB(t)
	seedStats(t, 1, 0)
	seedStats(t, 2, 1)

	AddReplayWatchDelta(1, 0, 1)
	AddReplayWatchDelta(1, 0, 1)
	AddReplayWatchDelta(2, 1, 5)
	flushReplayWatches()

	stats, err := GetUserStatistics(1, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.ReplaysWatched)

	stats, err = GetUserStatistics(2, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), stats.ReplaysWatched)

	// The flush drains the accumulator; a second tick writes nothing.
	flushReplayWatches()
	stats, err = GetUserStatistics(1, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.ReplaysWatched)
}

func TestGetRankingPageOrdersByPP(t *testing.T) {
	setupTestDB(t)
	for i, pp := range []float64{120, 300, 50} {
		userID := uint(i + 1)
		require.NoError(t, DB.Create(&UserStatistics{UserId: userID, RulesetId: 0, PP: pp, IsRanked: true}).Error)
	}

	page, err := GetRankingPage(0, RankingSortPerformance, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, uint(2), page[0].UserId)
	require.Equal(t, uint(1), page[1].UserId)
	require.Equal(t, uint(3), page[2].UserId)
}
