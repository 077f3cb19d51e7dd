package score

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildOsuFile(mode int, cs float64, objectLines []string) []byte {
	var b strings.Builder
	b.WriteString("osu file format v14\n\n[General]\n")
	fmt.Fprintf(&b, "Mode: %d\n\n", mode)
	b.WriteString("[Difficulty]\n")
	fmt.Fprintf(&b, "CircleSize:%g\n\n", cs)
	b.WriteString("[HitObjects]\n")
	for _, line := range objectLines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// circles returns n plain circles spaced spacingMS apart.
func circles(n int, spacingMS int64) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("100,100,%d,1,0", int64(i)*spacingMS)
	}
	return lines
}

func TestSuspiciousEmptyMapIsClean(t *testing.T) {
	require.False(t, IsSuspiciousBeatmap(buildOsuFile(RulesetOsu, 4, nil)))
}

func TestSuspiciousNormalMapIsClean(t *testing.T) {
	require.False(t, IsSuspiciousBeatmap(buildOsuFile(RulesetOsu, 4, circles(200, 500))))
}

func TestSuspiciousMapLongerThan24Hours(t *testing.T) {
	lines := []string{
		"100,100,0,1,0",
		"100,100,90000000,1,0", // > 24h after the first object
	}
	require.True(t, IsSuspiciousBeatmap(buildOsuFile(RulesetOsu, 4, lines)))
}

func TestSuspiciousTaikoObjectCount(t *testing.T) {
	// Taiko's cap is 30k objects; 30001 spaced far apart still trips it.
	require.True(t, IsSuspiciousBeatmap(buildOsuFile(RulesetTaiko, 4, circles(30_001, 10))))
}

func TestSuspiciousDensityWindow(t *testing.T) {
	// 201 objects inside a single 1000ms window exceeds per_1s=200.
	require.True(t, IsSuspiciousBeatmap(buildOsuFile(RulesetOsu, 4, circles(250, 1))))
}

func TestSuspicious2BDetection(t *testing.T) {
	lines := []string{
		"100,100,1000,1,0",
		"200,200,1000,1,0", // identical start time
		"300,300,2000,1,0",
	}
	require.True(t, IsSuspiciousBeatmap(buildOsuFile(RulesetOsu, 4, lines)))
}

func TestSuspiciousSliderRepeatCount(t *testing.T) {
	lines := []string{
		"100,100,1000,2,0,B|200:200,6000,140",
		"100,100,3000,1,0",
	}
	require.True(t, IsSuspiciousBeatmap(buildOsuFile(RulesetOsu, 4, lines)))
}

func TestSuspiciousSliderAnchorOutOfBounds(t *testing.T) {
	lines := []string{
		"100,100,1000,2,0,B|700:100,1,140", // anchor x beyond 512
		"100,100,3000,1,0",
	}
	require.True(t, IsSuspiciousBeatmap(buildOsuFile(RulesetOsu, 4, lines)))
}

func TestSuspiciousSliderInBoundsIsClean(t *testing.T) {
	lines := []string{
		"100,100,1000,2,0,B|200:150,2,140",
		"100,100,3000,1,0",
	}
	require.False(t, IsSuspiciousBeatmap(buildOsuFile(RulesetOsu, 4, lines)))
}

func TestSuspiciousManiaDensityScalesWithKeyCount(t *testing.T) {
	// cs=8 doubles mania's density allowance: 250 objects 4ms apart stay
	// under per_1s=800 but trip cs=2's per_1s=200.
	lines := circles(250, 4)
	require.True(t, IsSuspiciousBeatmap(buildOsuFile(RulesetMania, 2, lines)))
	require.False(t, IsSuspiciousBeatmap(buildOsuFile(RulesetMania, 8, lines)))
}
