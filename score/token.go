package score

import (
	"context"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/fetcher"
	"github.com/aquareto/aquareto-server/model"
)

// ReserveRequest carries Phase A's token-reservation body.
type ReserveRequest struct {
	UserId              uint
	BeatmapId           uint
	RulesetId           int
	BeatmapHash         string
	ClientVersion       string
	RulesetVersionHash  string
	RoomId              *uint
	PlaylistItemId      *uint
}

// ReserveToken validates the client/ruleset version and beatmap hash, then
// creates a ScoreToken the caller redeems in Phase B via Submit.
func ReserveToken(ctx context.Context, req ReserveRequest, fetch *fetcher.Fetcher) (*model.ScoreToken, error) {
	if config.MinClientVersion != "" && req.ClientVersion < config.MinClientVersion {
		return nil, apperr.New(apperr.KindValidation, "client_outdated").
			WithDetails(map[string]string{"min_version": config.MinClientVersion, "client_version": req.ClientVersion})
	}

	if config.RulesetsVersionHash != "" && req.RulesetVersionHash != config.RulesetsVersionHash {
		return nil, apperr.New(apperr.KindValidation, "ruleset_version_mismatch").
			WithDetails(map[string]string{"received_hash": req.RulesetVersionHash})
	}

	bm, _, err := EnsureBeatmap(ctx, req.BeatmapId, fetch)
	if err != nil {
		return nil, errors.Wrap(err, "resolve beatmap for token reservation")
	}
	if bm.Checksum != "" && req.BeatmapHash != "" && bm.Checksum != req.BeatmapHash {
		return nil, apperr.New(apperr.KindConflict, "beatmap_hash_mismatch").
			WithDetails(map[string]string{"expected": bm.Checksum, "received": req.BeatmapHash})
	}

	token, err := model.CreateScoreToken(req.UserId, req.BeatmapId, req.RulesetId, req.RoomId, req.PlaylistItemId)
	if err != nil {
		return nil, errors.Wrap(err, "create score token")
	}

	if fetch != nil {
		go preloadRawBeatmap(fetch, req.BeatmapId)
	}
	return token, nil
}

// preloadRawBeatmap warms the raw-file cache in the background so Phase
// B's suspicious-beatmap gate rarely waits on an upstream round trip.
func preloadRawBeatmap(fetch *fetcher.Fetcher, beatmapID uint) {
	defer func() { _ = recover() }()
	_, _ = fetch.FetchRawBeatmap(context.Background(), beatmapID)
}
