package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateBeatmapsetReplacesVote(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, RateBeatmapset(1, 10, 8))
	require.NoError(t, RateBeatmapset(2, 10, 4))

	count, average, err := BeatmapsetRatingSummary(10)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.InDelta(t, 6.0, average, 0.001)

	// Re-rating replaces, never duplicates.
	require.NoError(t, RateBeatmapset(1, 10, 2))
	count, average, err = BeatmapsetRatingSummary(10)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.InDelta(t, 3.0, average, 0.001)
}

func TestBeatmapsetRatingSummaryEmpty(t *testing.T) {
	setupTestDB(t)

	count, average, err := BeatmapsetRatingSummary(99)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Zero(t, average)
}
