package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aquareto/aquareto-server/appctx"
	"github.com/aquareto/aquareto-server/chat"
	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/graceful"
	"github.com/aquareto/aquareto-server/common/i18n"
	"github.com/aquareto/aquareto-server/common/logger"
	"github.com/aquareto/aquareto-server/eventhub"
	"github.com/aquareto/aquareto-server/middleware"
	"github.com/aquareto/aquareto-server/model"
	"github.com/aquareto/aquareto-server/monitor"
	"github.com/aquareto/aquareto-server/router"
	"github.com/aquareto/aquareto-server/scheduler"
)

func main() {
	ctx := context.Background()

	common.Init()
	logger.SetupLogger()
	logger.SetupEnhancedLogger(ctx)

	logger.Logger.Info("server starting", zap.String("version", common.Version))

	if logger.LogDir != "" && config.LogRetentionDays > 0 {
		logger.StartLogRetentionCleaner(ctx, config.LogRetentionDays, logger.LogDir)
	}

	if config.GinMode != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Relational store.
	model.InitDB()
	defer func() {
		if err := model.CloseDB(); err != nil {
			logger.Logger.Error("failed to close database", zap.Error(err))
		}
	}()

	// Cache fabric: three logical Redis stores.
	if err := common.InitRedisClients(); err != nil {
		logger.Logger.Fatal("failed to initialize Redis", zap.Error(err))
	}

	// Chat: prime the global message id counter, start the persistence
	// worker.
	if err := chat.Start(ctx); err != nil {
		logger.Logger.Fatal("failed to start chat subsystem", zap.Error(err))
	}

	model.InitBatchUpdater()

	// Outbound collaborators: fetcher and calculator clients.
	appctx.Init()

	// Background jobs.
	jobs := scheduler.New(appctx.Fetcher)
	if err := jobs.Start(ctx); err != nil {
		logger.Logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer jobs.Stop()

	if err := i18n.Init(); err != nil {
		logger.Logger.Fatal("failed to initialize i18n", zap.Error(err))
	}

	monitor.SetBuildInfo(common.Version, runtime.Version())

	wireEventSubscribers(ctx)

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		middleware.PanicRecover(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	server.Use(middleware.RequestId())
	server.Use(middleware.Language())
	server.Use(middleware.TrackRequests())
	server.Use(monitor.GinMiddleware())

	server.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.SetRouter(server)

	port := os.Getenv("PORT")
	if port == "" {
		port = config.ServerPort
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Logger.Info("server started", zap.String("address", "http://localhost:"+port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("shutdown signal received, draining")
	graceful.SetDraining()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("http server shutdown failed", zap.Error(err))
	}
	if err := graceful.Drain(shutdownCtx); err != nil {
		logger.Logger.Error("background drain incomplete", zap.Error(err))
	}
	logger.Logger.Info("server stopped")
}

// wireEventSubscribers attaches the cross-component consumers to the
// in-process event hub: real-time notification pushes for achievements and
// the Redis chat:notification bridge.
func wireEventSubscribers(ctx context.Context) {
	eventhub.Default.Subscribe(eventhub.TopicAchievementEarned, func(payload any) {
		earned, ok := payload.(map[string]any)
		if !ok {
			return
		}
		userID, ok := earned["user_id"].(uint)
		if !ok {
			return
		}
		chat.Default.Send(userID, map[string]any{"event": "new", "data": earned})
		if common.IsRedisEnabled() {
			if raw, err := json.Marshal(earned); err == nil {
				if err := common.RDB.Publish(ctx, "chat:notification", raw).Err(); err != nil {
					logger.Logger.Warn("publish achievement notification failed", zap.Error(err))
				}
			}
		}
	})

	eventhub.Default.Subscribe(eventhub.TopicReplayDownloaded, func(payload any) {
		scoreID, ok := payload.(uint)
		if !ok {
			return
		}
		s, err := model.GetScore(scoreID)
		if err != nil {
			return
		}
		model.AddReplayWatchDelta(s.UserId, s.RulesetId, 1)
	})

	eventhub.Default.Subscribe(eventhub.TopicUserRegistered, func(payload any) {
		user, ok := payload.(*model.User)
		if !ok {
			return
		}
		logger.Logger.Info("user registered",
			zap.Uint("user_id", user.Id), zap.String("username", user.Username))
	})
}
