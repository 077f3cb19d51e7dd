// Package scheduler runs the background cache-warmup and snapshot jobs on
// a robfig/cron schedule: every job logs and continues on failure, and
// nothing a job does is required for request-path correctness.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/zap"
	"github.com/robfig/cron/v3"

	"github.com/aquareto/aquareto-server/cache"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/logger"
	"github.com/aquareto/aquareto-server/fetcher"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/score"
)

// Scheduler owns the cron engine and the collaborators its jobs call into.
// Every job is idempotent and singleton: cron itself never runs two
// invocations of the same entry concurrently, and each job's DB/cache
// writes are upserts, so an overlapping manual Trigger call is harmless.
type Scheduler struct {
	cron  *cron.Cron
	fetch *fetcher.Fetcher
}

// New builds a Scheduler bound to fetch for the beatmapset sync job.
func New(fetch *fetcher.Fetcher) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		fetch: fetch,
	}
}

// Start registers the seven jobs and starts the cron
// engine. Call once at process startup, after model.InitDB and
// common.InitRedisClients.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"homepage_warmup", everyMinutes(config.SchedulerHomepageWarmupMinutes), s.warmupHomepage},
		{"ranking_refresh", everyMinutes(config.SchedulerRankingRefreshMinutes), s.refreshRankings},
		{"user_preload", everyMinutes(config.SchedulerUserPreloadMinutes), s.preloadActiveUsers},
		{"user_warmup", everyMinutes(config.SchedulerUserWarmupMinutes), s.warmupTopUsers},
		{"rank_history", dailyAt(config.SchedulerRankHistoryHourUTC), s.snapshotRankHistory},
		{"daily_challenge_rotation", dailyAt(config.SchedulerDailyChallengeHourUTC), s.rotateDailyChallenge},
		{"beatmapset_sync", everyMinutes(config.SchedulerBeatmapSyncMinutes), s.syncStaleBeatmapsets},
	}

	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(job.spec, func() { s.runGuarded(ctx, job.name, job.run) })
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	logger.Logger.Info("scheduler started", zap.Int("job_count", len(jobs)))
	return nil
}

// Stop drains the cron engine, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// runGuarded recovers a panicking job and logs any returned error instead
// of letting either take down the process; a job that fails this tick
// simply runs again next tick.
func (s *Scheduler) runGuarded(ctx context.Context, name string, run func(context.Context)) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("scheduler job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()
	run(ctx)
	logger.Logger.Debug("scheduler job completed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

func everyMinutes(n int) string {
	if n <= 0 {
		n = 1
	}
	return "@every " + time.Duration(n*int(time.Minute)).String()
}

func dailyAt(hourUTC int) string {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 0
	}
	return fmt.Sprintf("0 %d * * *", hourUTC)
}

// warmupHomepage refreshes the cached "front page" beatmapset search
// (empty query, ranked status) that GET /beatmapsets/search serves for its
// default, unfiltered call.
func (s *Scheduler) warmupHomepage(ctx context.Context) {
	sets, err := model.SearchBeatmapsets("", model.BeatmapStatusRanked, 50, 0)
	if err != nil {
		logger.Logger.Warn("homepage warmup failed", zap.Error(err))
		return
	}
	key := cache.BeatmapsetSearchKey("", "")
	cache.Set(ctx, key, sets, time.Duration(config.CacheSearchTTLSeconds)*time.Second)
}

// refreshRankings repopulates the first page of every (ruleset, sort)
// combination's global ranking cache, the set of pages homepage traffic
// actually reads.
func (s *Scheduler) refreshRankings(ctx context.Context) {
	for _, rulesetID := range config.SupportedRulesets {
		for _, sort := range []model.RankingSort{model.RankingSortPerformance, model.RankingSortScore} {
			users, err := model.GetRankingPage(rulesetID, sort, "", 1, 50)
			if err != nil {
				logger.Logger.Warn("ranking refresh failed", zap.Int("ruleset", rulesetID), zap.String("sort", string(sort)), zap.Error(err))
				continue
			}
			total, err := model.RankedUserCount(rulesetID)
			if err != nil {
				continue
			}
			key := cache.RankingPageKey(rulesetID, string(sort), "", 1)
			cache.Set(ctx, key, score.RankingPage{Users: users, Total: total}, time.Duration(config.CacheDefaultTTLSeconds)*time.Second)
		}
	}
}

// preloadActiveUsers warms the profile cache for the users most likely to
// be browsed next. No activity-timestamp column exists on User, so this
// uses the score-ranking leaderboard as a proxy for "active in the last
// 24h" (see DESIGN.md).
func (s *Scheduler) preloadActiveUsers(ctx context.Context) {
	for _, rulesetID := range config.SupportedRulesets {
		users, err := model.GetRankingPage(rulesetID, model.RankingSortScore, "", 1, 100)
		if err != nil {
			logger.Logger.Warn("user preload failed", zap.Int("ruleset", rulesetID), zap.Error(err))
			continue
		}
		for _, u := range users {
			cache.Set(ctx, cache.UserRulesetKey(u.UserId, rulesetID), u, time.Duration(config.CacheDefaultTTLSeconds)*time.Second)
		}
	}
}

// warmupTopUsers refreshes the full profile (User + UserStatistics per
// ruleset) for the top 100 pp players per ruleset, the cache rows most
// likely to be read by leaderboard/profile traffic between ticks.
func (s *Scheduler) warmupTopUsers(ctx context.Context) {
	for _, rulesetID := range config.SupportedRulesets {
		users, err := model.GetRankingPage(rulesetID, model.RankingSortPerformance, "", 1, 100)
		if err != nil {
			logger.Logger.Warn("user warmup failed", zap.Int("ruleset", rulesetID), zap.Error(err))
			continue
		}
		for _, stats := range users {
			user, err := model.GetUserById(stats.UserId)
			if err != nil {
				continue
			}
			cache.Set(ctx, cache.UserKey(stats.UserId), user, time.Duration(config.CacheDefaultTTLSeconds)*time.Second)
			cache.Set(ctx, cache.UserRulesetKey(stats.UserId, rulesetID), stats, time.Duration(config.CacheDefaultTTLSeconds)*time.Second)
		}
	}
}

// snapshotRankHistory records today's global rank for every user with a
// nonzero pp per ruleset, and advances RankTop when it improves.
func (s *Scheduler) snapshotRankHistory(_ context.Context) {
	today := time.Now().UTC()
	for _, rulesetID := range config.SupportedRulesets {
		ids, err := model.AllRankedUserIdsForRuleset(rulesetID)
		if err != nil {
			logger.Logger.Warn("rank history snapshot failed to list users", zap.Int("ruleset", rulesetID), zap.Error(err))
			continue
		}
		for i, userID := range ids {
			rank := i + 1
			if err := model.RecordRankHistory(userID, rulesetID, today, rank); err != nil {
				logger.Logger.Warn("rank history record failed", zap.Uint("user_id", userID), zap.Error(err))
				continue
			}
			if err := model.UpdateRankTop(userID, rulesetID, rank); err != nil {
				logger.Logger.Warn("rank top update failed", zap.Uint("user_id", userID), zap.Error(err))
			}
		}
	}
}

// rotateDailyChallenge ends yesterday's DAILY_CHALLENGE room and opens
// today's, with a single playlist item expiring at the next rotation
// boundary. The beatmap pick is deterministic per day, so a re-run after a
// crash lands on the same map and the existing room is left alone.
func (s *Scheduler) rotateDailyChallenge(_ context.Context) {
	now := time.Now().UTC()
	today := now.Format("2006-01-02")

	active, err := model.ListRooms(model.RoomStatusActive, model.RoomCategoryDailyChallenge, 10)
	if err != nil {
		logger.Logger.Warn("daily challenge rotation failed to list rooms", zap.Error(err))
		return
	}
	for _, r := range active {
		if r.Name == "Daily Challenge "+today {
			return // already rotated today
		}
		if err := model.EndRoom(r.Id); err != nil {
			logger.Logger.Warn("failed to end previous daily challenge room", zap.Uint("room_id", r.Id), zap.Error(err))
		}
	}

	bm, err := model.DailyChallengeBeatmap(now.YearDay() + now.Year()*366)
	if err != nil {
		logger.Logger.Warn("daily challenge rotation has no beatmap to pick", zap.Error(err))
		return
	}

	r := &model.Room{
		Category: model.RoomCategoryDailyChallenge,
		Name:     "Daily Challenge " + today,
		Type:     model.RoomTypePlaylists,
		Status:   model.RoomStatusActive,
	}
	if err := model.CreateRoom(r); err != nil {
		logger.Logger.Warn("daily challenge room creation failed", zap.Error(err))
		return
	}
	channel := &model.ChatChannel{Name: fmt.Sprintf("mp_%d", r.Id), Type: model.ChatChannelMultiplayer}
	if err := model.CreateChannel(channel); err == nil {
		_ = model.DB.Model(r).Update("channel_id", channel.Id).Error
	}

	expires := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	item := &model.PlaylistItem{
		RoomId:    r.Id,
		BeatmapId: bm.Id,
		RulesetId: bm.RulesetId,
		ExpiresAt: &expires,
	}
	if err := model.CreatePlaylistItems([]*model.PlaylistItem{item}); err != nil {
		logger.Logger.Warn("daily challenge playlist creation failed", zap.Error(err))
		return
	}
	logger.Logger.Info("daily challenge rotated",
		zap.Uint("room_id", r.Id), zap.Uint("beatmap_id", bm.Id))
}

// syncStaleBeatmapsets refreshes cached metadata for non-terminal
// beatmapsets (graveyard/WIP/pending/qualified) that haven't been checked
// recently.
func (s *Scheduler) syncStaleBeatmapsets(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(config.SchedulerBeatmapSyncMinutes) * time.Minute)
	ids, err := model.StaleBeatmapsetIds(cutoff, 100)
	if err != nil {
		logger.Logger.Warn("beatmapset sync failed to list stale sets", zap.Error(err))
		return
	}

	for _, id := range ids {
		meta, err := s.fetch.FetchBeatmapset(ctx, id)
		if err != nil {
			logger.Logger.Warn("beatmapset sync fetch failed", zap.Uint("beatmapset_id", id), zap.Error(err))
			continue
		}
		set := score.BeatmapsetFromMetadata(meta)
		if err := model.UpsertBeatmapset(set); err != nil {
			logger.Logger.Warn("beatmapset sync upsert failed", zap.Uint("beatmapset_id", id), zap.Error(err))
			continue
		}
		cache.InvalidateBeatmapset(ctx, id)
	}
}
