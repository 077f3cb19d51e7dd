package model

import (
	"sync"
	"time"

	"github.com/Laisky/zap"
	"gorm.io/gorm"

	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/logger"
)

// Batched statistics updates let high-frequency, low-value counters
// (replay watches) accumulate in memory and flush to the database on a
// timer instead of taking a UserStatistics row lock per event.

type statKey struct {
	UserId    uint
	RulesetId int
}

var (
	replayWatchMu    sync.Mutex
	replayWatchStore = make(map[statKey]int64)
)

// InitBatchUpdater starts the background flush loop. Call once at process
// start.
func InitBatchUpdater() {
	go func() {
		for {
			time.Sleep(time.Duration(config.BatchUpdateIntervalSeconds) * time.Second)
			flushReplayWatches()
		}
	}()
}

// AddReplayWatchDelta accumulates watch counts against (userID, rulesetID);
// the next flush tick writes them through to replays_watched.
func AddReplayWatchDelta(userID uint, rulesetID int, delta int64) {
	replayWatchMu.Lock()
	defer replayWatchMu.Unlock()
	replayWatchStore[statKey{UserId: userID, RulesetId: rulesetID}] += delta
}

func flushReplayWatches() {
	replayWatchMu.Lock()
	store := replayWatchStore
	replayWatchStore = make(map[statKey]int64)
	replayWatchMu.Unlock()

	if len(store) == 0 {
		return
	}

	for key, delta := range store {
		err := DB.Model(&UserStatistics{}).
			Where("user_id = ? AND ruleset_id = ?", key.UserId, key.RulesetId).
			Update("replays_watched", gorm.Expr("replays_watched + ?", delta)).Error
		if err != nil {
			logger.Logger.Error("failed to flush replay watch counts",
				zap.Uint("user_id", key.UserId), zap.Int("ruleset_id", key.RulesetId), zap.Error(err))
		}
	}
	logger.Logger.Debug("replay watch counts flushed", zap.Int("users", len(store)))
}
