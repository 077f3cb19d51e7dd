package score

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStandardisedToClassicOsu(t *testing.T) {
	// (N^2 * 32.57 + 100000) * S / MAX_SCORE
	got := StandardisedToClassic(RulesetOsu, MaxScore, 100)
	require.Equal(t, int64(425700), got)

	// Half the standardised score halves the classic score.
	require.Equal(t, int64(212850), StandardisedToClassic(RulesetOsu, MaxScore/2, 100))
}

func TestStandardisedToClassicTaiko(t *testing.T) {
	// (N * 1109 + 100000) * S / MAX_SCORE
	require.Equal(t, int64(210900), StandardisedToClassic(RulesetTaiko, MaxScore, 100))
	require.Equal(t, int64(105450), StandardisedToClassic(RulesetTaiko, MaxScore/2, 100))
}

func TestStandardisedToClassicCatch(t *testing.T) {
	// (S/MAX * N)^2 * 21.62 + S/10
	require.Equal(t, int64(316200), StandardisedToClassic(RulesetCatch, MaxScore, 100))
}

func TestStandardisedToClassicManiaIsIdentity(t *testing.T) {
	for _, s := range []int64{0, 1, 12345, MaxScore} {
		require.Equal(t, s, StandardisedToClassic(RulesetMania, s, 100))
	}
}

func TestStandardisedToClassicZeroScore(t *testing.T) {
	for ruleset := RulesetOsu; ruleset <= RulesetMania; ruleset++ {
		require.Equal(t, int64(0), StandardisedToClassic(ruleset, 0, 500))
	}
}
