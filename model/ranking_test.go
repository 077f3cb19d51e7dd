package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedRankedUser(t *testing.T, userID uint, country string, pp float64, rankedScore int64) {
	t.Helper()
	require.NoError(t, DB.Create(&User{
		Id:          userID,
		Username:    fmt.Sprintf("player%d", userID),
		Email:       fmt.Sprintf("player%d@example.com", userID),
		CountryCode: country,
	}).Error)
	require.NoError(t, DB.Create(&UserStatistics{
		UserId:      userID,
		RulesetId:   0,
		PP:          pp,
		RankedScore: rankedScore,
		PlayCount:   10,
		IsRanked:    true,
	}).Error)
}

func TestGetCountryRankingsAggregates(t *testing.T) {
	setupTestDB(t)
	seedRankedUser(t, 1, "DE", 300, 1000)
	seedRankedUser(t, 2, "DE", 100, 500)
	seedRankedUser(t, 3, "JP", 250, 2000)

	rows, err := GetCountryRankings(0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// DE's summed pp (400) outranks JP's (250).
	require.Equal(t, "DE", rows[0].CountryCode)
	require.Equal(t, int64(2), rows[0].ActiveUsers)
	require.InDelta(t, 400.0, rows[0].Performance, 0.001)
	require.Equal(t, int64(1500), rows[0].RankedScore)
	require.Equal(t, "JP", rows[1].CountryCode)
}

func TestGetTeamRankingsIsEmpty(t *testing.T) {
	setupTestDB(t)
	rows, err := GetTeamRankings(0)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestGetRankingPageCountryFilter(t *testing.T) {
	setupTestDB(t)
	seedRankedUser(t, 1, "DE", 300, 1000)
	seedRankedUser(t, 2, "JP", 500, 500)

	page, err := GetRankingPage(0, RankingSortPerformance, "DE", 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, uint(1), page[0].UserId)
}

func TestDailyChallengeBeatmapIsDeterministic(t *testing.T) {
	setupTestDB(t)
	require.NoError(t, DB.Create(&Beatmapset{Id: 1, Status: BeatmapStatusRanked}).Error)
	require.NoError(t, DB.Create(&Beatmap{Id: 11, BeatmapsetId: 1, RulesetId: 0}).Error)
	require.NoError(t, DB.Create(&Beatmap{Id: 12, BeatmapsetId: 1, RulesetId: 0}).Error)
	// Pending sets never enter the rotation.
	require.NoError(t, DB.Create(&Beatmapset{Id: 2, Status: BeatmapStatusPending}).Error)
	require.NoError(t, DB.Create(&Beatmap{Id: 21, BeatmapsetId: 2, RulesetId: 0}).Error)

	first, err := DailyChallengeBeatmap(7)
	require.NoError(t, err)
	again, err := DailyChallengeBeatmap(7)
	require.NoError(t, err)
	require.Equal(t, first.Id, again.Id)

	next, err := DailyChallengeBeatmap(8)
	require.NoError(t, err)
	require.NotEqual(t, first.Id, next.Id)

	// The pick cycles: day 9 wraps back around the two-map pool.
	wrapped, err := DailyChallengeBeatmap(9)
	require.NoError(t, err)
	require.Equal(t, first.Id, wrapped.Id)
}
