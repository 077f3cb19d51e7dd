package score

import (
	"context"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/aquareto/aquareto-server/fetcher"
	"github.com/aquareto/aquareto-server/model"
)

// EnsureBeatmap returns the local Beatmap/Beatmapset for id, fetching and
// caching upstream metadata on first reference.
func EnsureBeatmap(ctx context.Context, beatmapID uint, fetch *fetcher.Fetcher) (*model.Beatmap, *model.Beatmapset, error) {
	bm, err := model.GetBeatmap(beatmapID)
	if err == nil {
		set, setErr := model.GetBeatmapset(bm.BeatmapsetId)
		return bm, set, errors.Wrap(setErr, "load cached beatmapset")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, errors.Wrap(err, "load cached beatmap")
	}
	if fetch == nil {
		return nil, nil, errors.Errorf("beatmap %d unknown and no fetcher configured", beatmapID)
	}

	lookup, err := fetch.FetchBeatmap(ctx, beatmapID)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "fetch unknown beatmap %d upstream", beatmapID)
	}
	if lookup.Beatmapset == nil {
		return nil, nil, errors.Errorf("upstream beatmap %d missing beatmapset", beatmapID)
	}

	set := BeatmapsetFromMetadata(lookup.Beatmapset)
	if err := model.UpsertBeatmapset(set); err != nil {
		return nil, nil, errors.Wrap(err, "persist fetched beatmapset")
	}

	bm, err = model.GetBeatmap(beatmapID)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load beatmap %d after upstream fetch", beatmapID)
	}
	return bm, set, nil
}

// BeatmapsetFromMetadata maps an upstream metadata payload onto the
// relational Beatmapset shape; shared by the score pipeline, the sync
// endpoint, and the stale-set scheduler job.
func BeatmapsetFromMetadata(meta *fetcher.BeatmapsetMetadata) *model.Beatmapset {
	set := &model.Beatmapset{
		Id:          meta.Id,
		CreatorId:   meta.CreatorId,
		CreatorName: meta.CreatorName,
		Status:      meta.Status,
		Title:       meta.Title,
		Artist:      meta.Artist,
	}
	for _, bm := range meta.Beatmaps {
		set.Beatmaps = append(set.Beatmaps, model.Beatmap{
			Id:             bm.Id,
			BeatmapsetId:   meta.Id,
			DifficultyName: bm.DifficultyName,
			StarRating:     bm.StarRating,
			RulesetId:      bm.RulesetId,
			Checksum:       bm.Checksum,
		})
	}
	return set
}
