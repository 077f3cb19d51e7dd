package score

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/gorm"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/calculator"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/graceful"
	"github.com/aquareto/aquareto-server/common/logger"
	"github.com/aquareto/aquareto-server/eventhub"
	"github.com/aquareto/aquareto-server/fetcher"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/monitor"
)

// SubmitRequest is the server-side projection of the client's
// SoloScoreSubmissionInfo body.
type SubmitRequest struct {
	TokenId           uint
	UserId            uint
	Mods              []string
	Accuracy          float64
	MaxCombo          int
	TotalScore        int64
	Rank              string
	Passed            bool
	Perfect           bool
	Statistics        map[string]int
	MaximumStatistics map[string]int
	EndedAt           time.Time
	ReplayFilename    string
	BuildId           string
}

// Submit redeems a ScoreToken, persists the Score, and runs every
// background derivation the two-phase pipeline describes. Submit never
// fails the request over post-processing errors: those are logged and
// swallowed
func Submit(ctx context.Context, req SubmitRequest, calc *calculator.Client, fetch *fetcher.Fetcher) (*model.Score, error) {
	token, err := model.GetScoreToken(req.TokenId)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "score_token_not_found", err)
	}
	if token.UserId != req.UserId {
		return nil, apperr.New(apperr.KindAuthorization, "score_token_not_owned")
	}
	if token.ScoreId != nil {
		existing, err := model.GetScore(*token.ScoreId)
		return existing, errors.Wrap(err, "load existing score for redeemed token")
	}

	bm, set, err := EnsureBeatmap(ctx, token.BeatmapId, fetch)
	if err != nil {
		return nil, errors.Wrap(err, "resolve beatmap for submission")
	}

	rank := req.Rank
	if !req.Passed {
		rank = "F"
	}

	modsJSON, _ := json.Marshal(req.Mods)
	statsJSON, _ := json.Marshal(req.Statistics)
	maxStatsJSON, _ := json.Marshal(req.MaximumStatistics)

	var basicObjects int
	for _, v := range req.MaximumStatistics {
		basicObjects += v
	}
	classicTotal := StandardisedToClassic(token.RulesetId, req.TotalScore, basicObjects)

	newScore := &model.Score{
		UserId:            req.UserId,
		BeatmapId:         token.BeatmapId,
		RulesetId:         token.RulesetId,
		ModsJSON:          string(modsJSON),
		Accuracy:          req.Accuracy,
		MaxCombo:          req.MaxCombo,
		TotalScore:        req.TotalScore,
		ClassicTotalScore: classicTotal,
		Rank:              rank,
		Passed:            req.Passed,
		Perfect:           req.Perfect,
		HitStatisticsJSON: string(statsJSON),
		MaxStatisticsJSON: string(maxStatsJSON),
		EndedAt:           req.EndedAt,
		ReplayFilename:    req.ReplayFilename,
		BuildId:           req.BuildId,
	}
	if err := model.CreateScore(newScore); err != nil {
		return nil, errors.Wrap(err, "persist score")
	}

	redeemed, err := model.RedeemScoreToken(req.TokenId, newScore.Id)
	if err != nil {
		return nil, errors.Wrap(err, "redeem score token")
	}
	if !redeemed {
		// Lost the race against a concurrent submission on the same token.
		if refreshed, refreshErr := model.GetScoreToken(req.TokenId); refreshErr == nil && refreshed.ScoreId != nil {
			return model.GetScore(*refreshed.ScoreId)
		}
	}

	pp := computePP(ctx, newScore, bm, set, calc, fetch)
	if pp != nil {
		newScore.PP = pp
		if err := model.DB.Model(newScore).Update("pp", *pp).Error; err != nil {
			logger.Logger.Error("persist score pp failed", zap.Uint("score_id", newScore.Id), zap.Error(err))
		}
	}

	if req.Passed {
		// Post-processing is detached background work owning its own
		// session; it never fails the submission.
		graceful.GoCritical(context.Background(), "score-derivations", func(context.Context) {
			if err := applyDerivations(req.UserId, token.RulesetId, newScore, bm, set); err != nil {
				logger.Logger.Error("score post-processing failed", zap.Uint("score_id", newScore.Id), zap.Error(err))
			}
		})
	}

	monitor.ScoresSubmitted.WithLabelValues(strconv.Itoa(token.RulesetId)).Inc()
	eventhub.Default.Publish(eventhub.TopicScoreProcessed, newScore)
	if common.IsRedisEnabled() {
		if payload, err := json.Marshal(newScore); err == nil {
			if err := common.RDB.Publish(ctx, "osu-channel:score:processed", payload).Err(); err != nil {
				logger.Logger.Warn("publish score processed notification failed", zap.Error(err))
			}
		}
	}

	return newScore, nil
}

// computePP decides pp eligibility, calls the Calculator, and applies the
// fallback formula or the suspicious-beatmap force-to-zero rule.
func computePP(ctx context.Context, s *model.Score, bm *model.Beatmap, set *model.Beatmapset, calc *calculator.Client, fetch *fetcher.Fetcher) *float64 {
	if set == nil || !set.IsScoreable(config.AllBeatmapPPEnabled) {
		return nil
	}

	var statistics map[string]int
	_ = json.Unmarshal([]byte(s.HitStatisticsJSON), &statistics)
	var mods []string
	_ = json.Unmarshal([]byte(s.ModsJSON), &mods)

	var rawBeatmap []byte
	if fetch != nil {
		rawBeatmap, _ = fetch.FetchRawBeatmap(ctx, bm.Id)
	}
	if len(rawBeatmap) > 0 && IsSuspiciousBeatmap(rawBeatmap) {
		zero := 0.0
		return &zero
	}

	if calc != nil {
		attrs, err := calc.Performance(ctx, calculator.Request{
			BeatmapId:   bm.Id,
			BeatmapFile: rawBeatmap,
			Checksum:    bm.Checksum,
			Accuracy:    s.Accuracy,
			Combo:       s.MaxCombo,
			Mods:        mods,
			Statistics:  statistics,
			Ruleset:     s.RulesetId,
		})
		if err == nil && attrs.Supported {
			return &attrs.PP
		}
		if err != nil {
			logger.Logger.Warn("calculator performance request failed", zap.Uint("beatmap_id", bm.Id), zap.Error(err))
		}
	}

	if !config.PPFallbackEnabled {
		return nil
	}
	pp := FallbackPP(bm.StarRating, s.TotalScore)
	return &pp
}

// applyDerivations runs every transactional and cache-invalidation
// consequence of a passed score step 5-7.
func applyDerivations(userID uint, rulesetID int, s *model.Score, bm *model.Beatmap, set *model.Beatmapset) error {
	var bestChanged bool
	var rankedDelta int64

	err := model.DB.Transaction(func(tx *gorm.DB) error {
		var prevBest model.BestScore
		hadPrev := tx.Where("user_id = ? AND beatmap_id = ? AND ruleset_id = ?", userID, bm.Id, rulesetID).First(&prevBest).Error == nil

		changed, err := model.UpsertBestScore(tx, userID, bm.Id, rulesetID, s.Id, s.TotalScore)
		if err != nil {
			return errors.Wrap(err, "upsert best score")
		}
		bestChanged = changed
		if changed {
			if hadPrev {
				rankedDelta = s.TotalScore - prevBest.TotalScore
			} else {
				rankedDelta = s.TotalScore
			}
		}

		if s.PP != nil && set.IsScoreable(config.AllBeatmapPPEnabled) {
			if err := model.UpsertPPBestScore(tx, userID, rulesetID, s.Id, *s.PP, s.Accuracy, config.PPBestCount); err != nil {
				return errors.Wrap(err, "upsert pp best score")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	grade := gradeFor(s.Rank)
	playTime := int64(0) // per-play duration is not in SoloScoreSubmissionInfo beyond ended_at; left to client-reported hit counts elsewhere.
	var totalHits int64
	var hitCounts map[string]int
	if json.Unmarshal([]byte(s.HitStatisticsJSON), &hitCounts) == nil {
		for _, n := range hitCounts {
			totalHits += int64(n)
		}
	}
	if err := model.ApplyScoreStatistics(userID, rulesetID, s.TotalScore, playTime, totalHits, s.MaxCombo, s.Accuracy, grade); err != nil {
		return errors.Wrap(err, "apply score statistics")
	}
	if bestChanged {
		if err := model.IncrementRankedScore(userID, rulesetID, rankedDelta); err != nil {
			return errors.Wrap(err, "increment ranked score")
		}
	}
	if err := RecalculateUserDerivedStats(userID, rulesetID); err != nil {
		return errors.Wrap(err, "recalculate derived stats")
	}

	playcount, err := model.IncrementBeatmapPlaycount(userID, bm.Id)
	if err != nil {
		return errors.Wrap(err, "increment beatmap playcount")
	}
	if playcount%config.PlaycountMilestoneInterval == 0 {
		detail := ""
		if b, err := json.Marshal(map[string]any{"count": playcount, "beatmap_id": bm.Id}); err == nil {
			detail = string(b)
		}
		if err := model.RecordEvent(userID, model.EventTypePlaycountMilestone, detail); err != nil {
			logger.Logger.Warn("record playcount milestone event failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}

	stats, err := model.GetUserStatistics(userID, rulesetID)
	if err != nil {
		return errors.Wrap(err, "reload statistics for achievements")
	}
	if err := ProcessAchievements(userID, AchievementContext{
		Score: s, Beatmap: bm, Beatmapset: set, Stats: stats, Playcount: playcount,
	}); err != nil {
		logger.Logger.Warn("process achievements failed", zap.Uint("user_id", userID), zap.Error(err))
	}

	invalidateScoreCaches(userID, rulesetID, bm.BeatmapsetId)
	return nil
}

func invalidateScoreCaches(userID uint, rulesetID int, beatmapsetID uint) {
	ctx := context.Background()
	cache.InvalidateUserScores(ctx, userID)
	cache.Invalidate(ctx,
		cache.UserRulesetKey(userID, rulesetID),
		cache.V1UserRulesetKey(userID, rulesetID),
		cache.BeatmapsetKey(beatmapsetID),
	)
}

func gradeFor(rank string) string {
	switch rank {
	case "XH":
		return "XH"
	case "X":
		return "X"
	case "SH":
		return "SH"
	case "S":
		return "S"
	case "A":
		return "A"
	default:
		return ""
	}
}
