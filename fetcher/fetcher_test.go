package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aquareto/aquareto-server/common/config"
)

// tokenHandler serves /oauth/token with sequential token values.
func tokenHandler(grants *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grants.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}
}

func withBaseURL(t *testing.T, url string, mirrors []string) {
	t.Helper()
	prevBase, prevMirrors := config.FetcherBaseURL, config.FetcherMirrorURLs
	config.FetcherBaseURL = url
	config.FetcherMirrorURLs = mirrors
	t.Cleanup(func() {
		config.FetcherBaseURL = prevBase
		config.FetcherMirrorURLs = prevMirrors
	})
}

func TestFetchRawBeatmapDedup(t *testing.T) {
	var grants, raws atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(&grants))
	mux.HandleFunc("/osu/", func(w http.ResponseWriter, r *http.Request) {
		raws.Add(1)
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("osu file format v14"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	withBaseURL(t, srv.URL, nil)

	f := New()
	var wg sync.WaitGroup
	results := make([][]byte, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = f.FetchRawBeatmap(context.Background(), 42)
	}()
	time.Sleep(20 * time.Millisecond) // let the first call register as pending
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = f.FetchRawBeatmap(context.Background(), 42)
	}()
	wg.Wait()

	require.Equal(t, int64(1), raws.Load(), "second caller must await the first's fetch")
	require.Equal(t, results[0], results[1])
}

func TestFetchRawBeatmapMirrorFallback(t *testing.T) {
	var grants atomic.Int64
	primaryMux := http.NewServeMux()
	primaryMux.HandleFunc("/oauth/token", tokenHandler(&grants))
	primaryMux.HandleFunc("/osu/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	primary := httptest.NewServer(primaryMux)
	defer primary.Close()

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from mirror"))
	}))
	defer mirror.Close()

	withBaseURL(t, primary.URL, []string{mirror.URL})

	data, err := New().FetchRawBeatmap(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []byte("from mirror"), data)
}

func TestFetchRawBeatmapAllMirrorsFail(t *testing.T) {
	var grants atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(&grants))
	mux.HandleFunc("/osu/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	withBaseURL(t, srv.URL, nil)

	_, err := New().FetchRawBeatmap(context.Background(), 7)
	require.Error(t, err)
}

func TestTokenRegrantedAfter401(t *testing.T) {
	var grants, attempts atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(&grants))
	mux.HandleFunc("/osu/", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	withBaseURL(t, srv.URL, nil)

	data, err := New().FetchRawBeatmap(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), data)
	require.Equal(t, int64(2), grants.Load(), "401 must clear the cached token and regrant")
	require.Equal(t, int64(2), attempts.Load())
}

func TestObserveRateLimitBlocksSubsequentRequests(t *testing.T) {
	f := New()
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "1")
	f.observeRateLimit(resp)

	start := time.Now()
	require.NoError(t, f.awaitRateLimit(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestAwaitRateLimitHonorsCancellation(t *testing.T) {
	f := New()
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "60")
	f.observeRateLimit(resp)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, f.awaitRateLimit(ctx))
}
