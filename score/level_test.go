package score

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromTotalScore(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		want  float64
		delta float64
	}{
		{"zero score is level 1", 0, 1, 0},
		{"exactly one threshold reaches level 2", 30000, 2, 1e-9},
		{"half of the first threshold", 15000, 1.5, 1e-9},
		{"two full thresholds", 130000, 3, 1e-9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, LevelFromTotalScore(tt.total), tt.delta)
		})
	}
}

func TestLevelMonotonic(t *testing.T) {
	prev := 0.0
	for total := int64(0); total < 5_000_000; total += 100_000 {
		level := LevelFromTotalScore(total)
		require.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestLevelTableCoversVeryLargeScores(t *testing.T) {
	// The tail entries are effectively caps; a huge total must terminate
	// and land beyond level 100.
	level := LevelFromTotalScore(30_000_000_000)
	require.Greater(t, level, 100.0)
}
