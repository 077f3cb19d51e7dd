// Package fetcher is the external fetcher: a rate-limited,
// token-refreshing outbound client for upstream beatmap metadata and raw
// files, with per-beatmap request de-duplication and ordered mirror
// fallback for raw downloads.
package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/logger"
)

// BeatmapsetMetadata is the typed shape returned for an upstream beatmapset
// lookup; field set mirrors model.Beatmapset/model.Beatmap closely enough
// that the caller can map it 1:1 on a cache miss.
type BeatmapsetMetadata struct {
	Id          uint                  `json:"id"`
	CreatorId   uint                  `json:"creator_id"`
	CreatorName string                `json:"creator_name"`
	Status      int                   `json:"status"`
	Title       string                `json:"title"`
	Artist      string                `json:"artist"`
	Beatmaps    []BeatmapMetadata     `json:"beatmaps"`
}

type BeatmapMetadata struct {
	Id             uint    `json:"id"`
	DifficultyName string  `json:"version"`
	StarRating     float64 `json:"difficulty_rating"`
	RulesetId      int     `json:"mode_int"`
	Checksum       string  `json:"checksum"`
}

// BeatmapLookup is the typed shape returned for an upstream single-beatmap
// lookup, used when a score token references a beatmap id the store has
// never seen.
type BeatmapLookup struct {
	Id           uint                `json:"id"`
	BeatmapsetId uint                `json:"beatmapset_id"`
	Checksum     string              `json:"checksum"`
	Beatmapset   *BeatmapsetMetadata `json:"beatmapset"`
}

// Fetcher owns the pooled HTTP client, the process-wide token, the rate
// limiter state, and the in-flight raw-download coalescing group.
type Fetcher struct {
	http *http.Client

	mu            sync.Mutex
	accessToken   string
	tokenExpireAt time.Time

	rateMu      sync.Mutex
	blockedUntil time.Time

	rawGroup singleflight.Group
}

// New builds a Fetcher with the shared pooled HTTP client (keepalive 30s,
// max 50 connections).
func New() *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        config.FetcherMaxIdleConns,
		MaxIdleConnsPerHost: config.FetcherMaxIdleConns,
		IdleConnTimeout:     time.Duration(config.FetcherKeepAliveSeconds) * time.Second,
	}
	return &Fetcher{
		http: &http.Client{Timeout: time.Duration(config.FetcherHTTPTimeoutSeconds) * time.Second, Transport: transport},
	}
}

// grantAccessToken requests a new client-credentials token with 1s/2s/3s
// backoff across 3 attempts
func (f *Fetcher) grantAccessToken(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		token, expiresIn, err := f.requestToken(ctx)
		if err == nil {
			f.mu.Lock()
			f.accessToken = token
			f.tokenExpireAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
			f.mu.Unlock()

			if common.IsRedisEnabled() {
				cache.Set(ctx, cache.FetcherAccessTokenKey(config.FetcherClientId), token, time.Duration(expiresIn)*time.Second)
				cache.Set(ctx, cache.FetcherExpireAtKey(config.FetcherClientId), f.tokenExpireAt.Unix(), time.Duration(expiresIn)*time.Second)
			}
			return token, nil
		}
		lastErr = err
		logger.Logger.Warn("fetcher token grant attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return "", errors.Wrap(lastErr, "grant access token exhausted retries")
}

func (f *Fetcher) requestToken(ctx context.Context) (string, int, error) {
	form := map[string]string{
		"client_id":     config.FetcherClientId,
		"client_secret": config.FetcherClientSecret,
		"grant_type":    "client_credentials",
		"scope":         "public",
	}
	body, _ := json.Marshal(form)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.FetcherBaseURL+"/oauth/token", httpBody(body))
	if err != nil {
		return "", 0, errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", 0, errors.Wrap(err, "token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, errors.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, errors.Wrap(err, "decode token response")
	}
	return out.AccessToken, out.ExpiresIn, nil
}

// token returns a live access token, granting a fresh one if none is cached
// or the cached one has expired.
func (f *Fetcher) token(ctx context.Context) (string, error) {
	f.mu.Lock()
	tok, expireAt := f.accessToken, f.tokenExpireAt
	f.mu.Unlock()

	if tok != "" && time.Now().Before(expireAt) {
		return tok, nil
	}
	return f.grantAccessToken(ctx)
}

// clearToken drops the cached token on a 401, forcing the next call to
// re-grant before retrying
func (f *Fetcher) clearToken() {
	f.mu.Lock()
	f.accessToken = ""
	f.tokenExpireAt = time.Time{}
	f.mu.Unlock()
}

// awaitRateLimit blocks until any previously observed Retry-After window
// has elapsed.
func (f *Fetcher) awaitRateLimit(ctx context.Context) error {
	f.rateMu.Lock()
	until := f.blockedUntil
	f.rateMu.Unlock()

	if wait := time.Until(until); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *Fetcher) observeRateLimit(resp *http.Response) {
	if resp.StatusCode != http.StatusTooManyRequests {
		return
	}
	wait := config.FetcherDefaultRetryAfterSeconds
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			wait = secs
		}
	}
	f.rateMu.Lock()
	f.blockedUntil = time.Now().Add(time.Duration(wait) * time.Second)
	f.rateMu.Unlock()
}

// do issues an authenticated request against the primary upstream,
// transparently regranting the token once on a 401 and honoring any
// standing rate-limit window before sending.
func (f *Fetcher) do(ctx context.Context, method, url string) (*http.Response, error) {
	if err := f.awaitRateLimit(ctx); err != nil {
		return nil, err
	}

	tok, err := f.token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "obtain fetcher token")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build fetcher request")
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetcher request failed")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		f.clearToken()
		tok, err = f.token(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "re-obtain fetcher token after 401")
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err = f.http.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "fetcher retry after 401 failed")
		}
	}

	f.observeRateLimit(resp)
	return resp, nil
}

// FetchBeatmapset retrieves beatmapset metadata by id from the primary
// upstream host.
func (f *Fetcher) FetchBeatmapset(ctx context.Context, id uint) (*BeatmapsetMetadata, error) {
	resp, err := f.do(ctx, http.MethodGet, config.FetcherBaseURL+"/api/v2/beatmapsets/"+strconv.Itoa(int(id)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch beatmapset %d: upstream status %d", id, resp.StatusCode)
	}

	var meta BeatmapsetMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, errors.Wrapf(err, "decode beatmapset %d", id)
	}
	return &meta, nil
}

// FetchBeatmap retrieves single-beatmap metadata (with its parent
// beatmapset embedded) for a beatmap id unknown to the local store.
func (f *Fetcher) FetchBeatmap(ctx context.Context, id uint) (*BeatmapLookup, error) {
	resp, err := f.do(ctx, http.MethodGet, config.FetcherBaseURL+"/api/v2/beatmaps/"+strconv.Itoa(int(id)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch beatmap %d: upstream status %d", id, resp.StatusCode)
	}

	var lookup BeatmapLookup
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return nil, errors.Wrapf(err, "decode beatmap %d", id)
	}
	return &lookup, nil
}

// FetchRawBeatmap retrieves the raw .osu file for a beatmap id, coalescing
// concurrent callers for the same id through a singleflight group (errors
// propagate to every waiter) and falling back through configured mirrors in
// order when the primary host fails.
func (f *Fetcher) FetchRawBeatmap(ctx context.Context, id uint) ([]byte, error) {
	ttl := time.Duration(config.BeatmapRawCacheTTLHours) * time.Hour
	if common.IsRedisEnabled() {
		if cached, err := common.RDB.Get(ctx, cache.BeatmapRawKey(id)).Result(); err == nil {
			var data []byte
			if json.Unmarshal([]byte(cached), &data) == nil && len(data) > 0 {
				// A hit renews the TTL.
				common.RDB.Expire(ctx, cache.BeatmapRawKey(id), ttl)
				return data, nil
			}
		}
	}

	raw, err, _ := f.rawGroup.Do(strconv.Itoa(int(id)), func() (any, error) {
		return f.fetchRawWithMirrors(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	data := raw.([]byte)

	if common.IsRedisEnabled() {
		cache.Set(ctx, cache.BeatmapRawKey(id), data, ttl)
	}
	return data, nil
}

// FetchPreviewAudio retrieves a beatmapset's preview clip from the
// unauthenticated audio host. No token or mirror handling applies; the
// audio host is a plain CDN.
func (f *Fetcher) FetchPreviewAudio(ctx context.Context, setID uint) ([]byte, error) {
	if err := f.awaitRateLimit(ctx); err != nil {
		return nil, err
	}
	url := config.FetcherAudioBaseURL + "/preview/" + strconv.Itoa(int(setID)) + ".mp3"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build preview audio request")
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch preview audio for set %d", setID)
	}
	defer resp.Body.Close()
	f.observeRateLimit(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("preview audio for set %d: status %d", setID, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *Fetcher) fetchRawWithMirrors(ctx context.Context, id uint) ([]byte, error) {
	hosts := append([]string{config.FetcherBaseURL}, config.FetcherMirrorURLs...)

	var lastErr error
	for _, host := range hosts {
		resp, err := f.do(ctx, http.MethodGet, host+"/osu/"+strconv.Itoa(int(id)))
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode/100 != 2 {
			resp.Body.Close()
			lastErr = errors.Errorf("mirror %s returned status %d", host, resp.StatusCode)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrapf(err, "read raw beatmap %d from %s", id, host)
			continue
		}
		return data, nil
	}
	return nil, errors.Wrapf(lastErr, "all mirrors failed for beatmap %d", id)
}
