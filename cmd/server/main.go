package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	achievementsapi "github.com/classquest/classquest/internal/api/achievements"
	missionsapi "github.com/classquest/classquest/internal/api/missions"
	notificationsapi "github.com/classquest/classquest/internal/api/notifications"
	"github.com/classquest/classquest/internal/config"
	"github.com/classquest/classquest/internal/realtime"
	"github.com/classquest/classquest/internal/repository"
	"github.com/classquest/classquest/internal/service/achievements"
	"github.com/classquest/classquest/internal/service/cleanup"
	"github.com/classquest/classquest/internal/service/notifications"
	"github.com/classquest/classquest/internal/service/progress"
	"github.com/classquest/classquest/internal/service/scheduler"
	"github.com/classquest/classquest/pkg/cache"
	"github.com/classquest/classquest/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.Get()

	log.Info().
		Int("port", cfg.Server.Port).
		Str("environment", cfg.Server.Environment).
		Msg("Starting classquest server")

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Redis is optional; without it the mission cache degrades to misses.
	var missionCache cache.Cache = cache.NoopCache{}
	var redisCache *cache.RedisCache
	if cfg.Database.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(&cfg.Database.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, mission cache disabled")
		} else {
			missionCache = redisCache
		}
	}

	// Repositories
	missionRepo := repository.NewMissionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	actionRepo := repository.NewActionRepository(db)
	userRepo := repository.NewUserRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cleanupLogRepo := repository.NewCleanupLogRepository(db)

	// Realtime hub
	hub := realtime.NewHub(log)

	// Services
	notificationService := notifications.NewService(notificationRepo, userRepo, hub, log)
	progressService := progress.NewService(
		missionRepo, progressRepo, actionRepo, userRepo,
		notificationService, hub, missionCache,
		time.Duration(cfg.Missions.CacheTTL)*time.Second, log,
	)
	achievementService := achievements.NewService(achievementRepo, userRepo, notificationService, hub, log)
	cleanupService := cleanup.NewService(notificationRepo, cleanupLogRepo, cfg.Cleanup.RetentionDays, cfg.Cleanup.BatchSize, log)

	// Seed configured achievement definitions
	seedDefs, err := achievements.DefinitionsFromConfig(cfg.Achievements)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid achievement configuration")
	}
	if err := achievementService.SeedDefinitions(seedDefs); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed achievement definitions")
	}

	// Scheduler
	schedulerService := scheduler.NewService(cfg, cleanupService, missionRepo, progressService, log)
	if err := schedulerService.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// HTTP router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ws", func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		if err := hub.Serve(c.Writer, c.Request, uint(userID)); err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
		}
	})

	api := router.Group("/api/v1")
	missionsapi.NewHandler(progressService, log).RegisterRoutes(api)
	achievementsapi.NewHandler(achievementService, achievementRepo, log).RegisterRoutes(api)
	notificationsapi.NewHandler(notificationService, log).RegisterRoutes(api)

	// Metrics exporter on its own listener
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Int("port", cfg.Metrics.Port).Str("path", cfg.Metrics.Path).Msg("Metrics exporter started")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Metrics exporter failed")
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	schedulerService.Stop()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Metrics exporter shutdown failed")
		}
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.Error().Err(err).Msg("Redis close failed")
		}
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Database close failed")
	}

	log.Info().Msg("Server stopped")
}
