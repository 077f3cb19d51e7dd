package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquareto/aquareto-server/model"
)

func ppBest(values ...float64) []*model.PPBestScore {
	out := make([]*model.PPBestScore, len(values))
	for i, v := range values {
		out[i] = &model.PPBestScore{PP: v, Accuracy: 1}
	}
	return out
}

func TestWeightedPPDecay(t *testing.T) {
	// Σ pp_i · 0.95^i with no plays contributing bonus.
	got := weightedPP(ppBest(200, 100), 0)
	require.InDelta(t, 200+100*0.95, got, 1e-9)
}

func TestWeightedPPBonusTerm(t *testing.T) {
	noBonus := weightedPP(ppBest(100), 0)
	withPlays := weightedPP(ppBest(100), 500)
	require.Greater(t, withPlays, noBonus)

	// The bonus saturates: 1000 plays and 10000 plays earn the same.
	require.InDelta(t, weightedPP(ppBest(100), 1000), weightedPP(ppBest(100), 10000), 1e-9)
	require.InDelta(t, 100+416.6667*(1-math.Pow(0.9994, 1000)), weightedPP(ppBest(100), 1000), 1e-9)
}

func TestWeightedPPOrderMatters(t *testing.T) {
	// The caller is responsible for pp-descending order; the fold rewards
	// the head of the list most.
	desc := weightedPP(ppBest(200, 100), 0)
	asc := weightedPP(ppBest(100, 200), 0)
	require.Greater(t, desc, asc)
}

func TestWeightedAccuracy(t *testing.T) {
	scores := []*model.PPBestScore{
		{PP: 200, Accuracy: 1.0},
		{PP: 100, Accuracy: 0.5},
	}
	want := (1.0 + 0.5*0.95) / (1 + 0.95)
	require.InDelta(t, want, weightedAccuracy(scores), 1e-9)
}

func TestWeightedAccuracyEmpty(t *testing.T) {
	require.Zero(t, weightedAccuracy(nil))
}

func TestWeightedAccuracyUniformIsIdentity(t *testing.T) {
	require.InDelta(t, 0.987, weightedAccuracy([]*model.PPBestScore{
		{Accuracy: 0.987}, {Accuracy: 0.987}, {Accuracy: 0.987},
	}), 1e-9)
}
