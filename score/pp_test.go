package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackPPPerfectScoreReachesPMax(t *testing.T) {
	for _, s := range []float64{1, 3, 5.5, 8, 10} {
		pMax := 1.4 * math.Pow(s, 2.8)
		require.InDelta(t, pMax, FallbackPP(s, 1_000_000), 1e-9, "star rating %v", s)
	}
}

func TestFallbackPPLinearBelowKnee(t *testing.T) {
	// With s = 5, b = 0.95 - 0.33*(5-1)/7 ≈ 0.761 — scores well below the
	// knee scale linearly.
	low := FallbackPP(5, 200_000)
	double := FallbackPP(5, 400_000)
	require.InDelta(t, 2*low, double, 1e-9)
}

func TestFallbackPPMonotonicInScore(t *testing.T) {
	prev := -1.0
	for total := int64(0); total <= 1_000_000; total += 50_000 {
		pp := FallbackPP(6, total)
		require.Greater(t, pp, prev, "total score %d", total)
		prev = pp
	}
}

func TestFallbackPPContinuousAtKnee(t *testing.T) {
	// b for s=4: 0.95 - 0.33*3/7
	b := 0.95 - 0.33*3.0/7.0
	knee := int64(b * 1_000_000)
	below := FallbackPP(4, knee-1)
	above := FallbackPP(4, knee+1)
	require.InDelta(t, below, above, 0.01)
}

func TestFallbackPPStarClampInKneeOnly(t *testing.T) {
	// Star ratings above 8 keep growing pMax but the knee position stops
	// moving: both use b computed from the clamped value.
	require.Greater(t, FallbackPP(10, 1_000_000), FallbackPP(8, 1_000_000))
}
