package calculator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquareto/aquareto-server/common/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	prev := config.CalculatorBaseURL
	config.CalculatorBaseURL = srv.URL
	t.Cleanup(func() { config.CalculatorBaseURL = prev })

	return NewFromConfig()
}

func TestPerformanceRequestContract(t *testing.T) {
	var received Request
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/performance", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ruleset":     received.Ruleset,
			"pp":          123.4,
			"star_rating": 5.5,
			"max_combo":   777,
		})
	}))

	attrs, err := client.Performance(context.Background(), Request{
		BeatmapId: 9,
		Checksum:  "abc",
		Accuracy:  0.98,
		Combo:     500,
		Mods:      []string{"HD", "HR"},
		Ruleset:   0,
	})
	require.NoError(t, err)
	require.True(t, attrs.Supported)
	require.InDelta(t, 123.4, attrs.PP, 1e-9)
	require.InDelta(t, 5.5, attrs.StarRating, 1e-9)
	require.Equal(t, 777, attrs.MaxCombo)

	require.Equal(t, uint(9), received.BeatmapId)
	require.Equal(t, []string{"HD", "HR"}, received.Mods)
}

func TestUnsupportedRulesetMapsTo501(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}))

	attrs, err := client.Performance(context.Background(), Request{Ruleset: 7})
	require.NoError(t, err)
	require.False(t, attrs.Supported)
	require.Equal(t, 7, attrs.Ruleset)
}

func TestCalculatorErrorStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Difficulty(context.Background(), Request{})
	require.Error(t, err)
}
