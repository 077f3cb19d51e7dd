package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func createTestScore(t *testing.T, userID uint, pp float64) *Score {
	t.Helper()
	s := &Score{
		UserId:     userID,
		BeatmapId:  1,
		RulesetId:  0,
		TotalScore: int64(pp * 1000),
		Rank:       "S",
		Passed:     true,
		EndedAt:    time.Now(),
	}
	if pp > 0 {
		s.PP = &pp
	}
	require.NoError(t, CreateScore(s))
	return s
}

func TestPinScoresAssignsDenseOrder(t *testing.T) {
	setupTestDB(t)
	a := createTestScore(t, 1, 100)
	b := createTestScore(t, 1, 150)
	c := createTestScore(t, 1, 200)

	require.NoError(t, PinScore(1, a.Id))
	require.NoError(t, PinScore(1, b.Id))
	require.NoError(t, PinScore(1, c.Id))

	for i, id := range []uint{a.Id, b.Id, c.Id} {
		s, err := GetScore(id)
		require.NoError(t, err)
		require.Equal(t, i+1, s.PinnedOrder)
	}
}

func TestUnpinClosesGap(t *testing.T) {
	setupTestDB(t)
	a := createTestScore(t, 1, 100)
	b := createTestScore(t, 1, 150)
	c := createTestScore(t, 1, 200)
	for _, s := range []*Score{a, b, c} {
		require.NoError(t, PinScore(1, s.Id))
	}

	require.NoError(t, UnpinScore(1, b.Id))

	got := map[uint]int{}
	for _, id := range []uint{a.Id, b.Id, c.Id} {
		s, err := GetScore(id)
		require.NoError(t, err)
		got[id] = s.PinnedOrder
	}
	require.Equal(t, map[uint]int{a.Id: 1, b.Id: 0, c.Id: 2}, got)
}

func TestReorderPinnedScore(t *testing.T) {
	setupTestDB(t)
	a := createTestScore(t, 1, 100)
	b := createTestScore(t, 1, 150)
	c := createTestScore(t, 1, 200)
	for _, s := range []*Score{a, b, c} {
		require.NoError(t, PinScore(1, s.Id))
	}

	// Move a immediately after c; the list stays contiguous from 1 and a
	// lands last.
	require.NoError(t, ReorderPinnedScore(1, a.Id, c.Id))

	orders := map[uint]int{}
	for _, id := range []uint{a.Id, b.Id, c.Id} {
		s, err := GetScore(id)
		require.NoError(t, err)
		orders[id] = s.PinnedOrder
	}
	require.Equal(t, 3, orders[a.Id])
	require.ElementsMatch(t, []int{1, 2}, []int{orders[b.Id], orders[c.Id]})
}

func TestReorderToFront(t *testing.T) {
	setupTestDB(t)
	a := createTestScore(t, 1, 100)
	b := createTestScore(t, 1, 150)
	for _, s := range []*Score{a, b} {
		require.NoError(t, PinScore(1, s.Id))
	}

	require.NoError(t, ReorderPinnedScore(1, b.Id, 0))

	sb, _ := GetScore(b.Id)
	sa, _ := GetScore(a.Id)
	require.Equal(t, 1, sb.PinnedOrder)
	require.Equal(t, 2, sa.PinnedOrder)
}

func TestUpsertBestScoreKeepsHighest(t *testing.T) {
	setupTestDB(t)
	first := createTestScore(t, 1, 0)
	second := createTestScore(t, 1, 0)

	improved, err := UpsertBestScore(DB, 1, 1, 0, first.Id, 600000)
	require.NoError(t, err)
	require.True(t, improved)

	// A lower score does not replace the stored best.
	improved, err = UpsertBestScore(DB, 1, 1, 0, second.Id, 500000)
	require.NoError(t, err)
	require.False(t, improved)

	var best BestScore
	require.NoError(t, DB.Where("user_id = ? AND beatmap_id = ? AND ruleset_id = ?", 1, 1, 0).First(&best).Error)
	require.Equal(t, first.Id, best.ScoreId)
	require.Equal(t, int64(600000), best.TotalScore)

	// A higher one does.
	improved, err = UpsertBestScore(DB, 1, 1, 0, second.Id, 700000)
	require.NoError(t, err)
	require.True(t, improved)

	require.NoError(t, DB.Where("user_id = ? AND beatmap_id = ? AND ruleset_id = ?", 1, 1, 0).First(&best).Error)
	require.Equal(t, second.Id, best.ScoreId)
	require.Equal(t, int64(700000), best.TotalScore)

	var count int64
	require.NoError(t, DB.Model(&BestScore{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUpsertPPBestKeepsTopN(t *testing.T) {
	setupTestDB(t)
	const keep = 3

	for _, pp := range []float64{50, 120, 80, 200, 90} {
		s := createTestScore(t, 1, pp)
		require.NoError(t, UpsertPPBestScore(DB, 1, 0, s.Id, pp, 0.99, keep))
	}

	rows, err := GetPPBestScores(1, 0)
	require.NoError(t, err)
	require.Len(t, rows, keep)

	got := make([]float64, len(rows))
	for i, r := range rows {
		got[i] = r.PP
	}
	require.Equal(t, []float64{200, 120, 90}, got)
}

func TestScoreTokenRedeemedOnce(t *testing.T) {
	setupTestDB(t)
	token, err := CreateScoreToken(1, 2, 0, nil, nil)
	require.NoError(t, err)
	require.Nil(t, token.ScoreId)

	s := createTestScore(t, 1, 0)
	redeemed, err := RedeemScoreToken(token.Id, s.Id)
	require.NoError(t, err)
	require.True(t, redeemed)

	other := createTestScore(t, 1, 0)
	redeemed, err = RedeemScoreToken(token.Id, other.Id)
	require.NoError(t, err)
	require.False(t, redeemed, "a token is redeemable at most once")

	stored, err := GetScoreToken(token.Id)
	require.NoError(t, err)
	require.NotNil(t, stored.ScoreId)
	require.Equal(t, s.Id, *stored.ScoreId)
}
