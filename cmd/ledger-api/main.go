package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-ledger-api/api/swagger"
	"github.com/noah-isme/course-ledger-api/internal/handler"
	"github.com/noah-isme/course-ledger-api/internal/integration"
	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/internal/repository"
	"github.com/noah-isme/course-ledger-api/internal/service"
	"github.com/noah-isme/course-ledger-api/pkg/cache"
	"github.com/noah-isme/course-ledger-api/pkg/config"
	"github.com/noah-isme/course-ledger-api/pkg/database"
	"github.com/noah-isme/course-ledger-api/pkg/logger"
)

// @title Course Ledger API
// @version 1.0.0
// @description Enrollment ledger and course progress tracker
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(rootCtx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Events.Enabled {
		redisClient, err = cache.NewRedis(rootCtx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, cache and event feed disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, "course-ledger"),
		metricsSvc,
		cfg.Cache.TTL,
		logr,
		cfg.Cache.Enabled && redisClient != nil,
	)
	eventSvc := service.NewEventService(
		repository.NewEventRepository(redisClient, cfg.Events.Channel),
		metricsSvc,
		logr,
		service.EventServiceConfig{
			Enabled:    cfg.Events.Enabled && redisClient != nil,
			Workers:    cfg.Events.Workers,
			BufferSize: cfg.Events.BufferSize,
			MaxRetries: cfg.Events.MaxRetries,
		},
	)
	eventSvc.Start(rootCtx)
	defer eventSvc.Stop()

	settingsSvc := service.NewSettingsService(repository.NewSettingsRepository(db), logr, service.SettingsServiceConfig{
		Defaults: models.LedgerSettings{
			PlatformFee:         cfg.Ledger.PlatformFee,
			MaxEnrollments:      cfg.Ledger.MaxEnrollments,
			CompletionThreshold: cfg.Progress.CompletionThreshold,
			MaxMilestones:       cfg.Progress.MaxMilestones,
			RewardAmount:        cfg.Progress.RewardAmount,
		},
		BurnAddress: models.Principal(cfg.Ledger.BurnAddress),
	})
	if err := settingsSvc.Load(rootCtx); err != nil {
		logr.Fatal("failed to load ledger settings", zap.Error(err))
	}

	clients := integration.NewClients(cfg.Collaborators)
	validate := validator.New()

	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceParams{
		Repo:        repository.NewEnrollmentRepository(db),
		Authorities: clients.Authorities,
		Tokens:      clients.Tokens,
		Settings:    settingsSvc,
		Events:      eventSvc,
		Metrics:     metricsSvc,
		Validator:   validate,
		Logger:      logr,
	})

	progressSvc := service.NewProgressService(service.ProgressServiceParams{
		Repo:               repository.NewProgressRepository(db),
		Enrollments:        enrollmentSvc,
		Authorities:        clients.Authorities,
		Courses:            clients.Courses,
		Rewards:            clients.Tokens,
		Credentials:        clients.Credentials,
		Learners:           clients.Users,
		Settings:           settingsSvc,
		Cache:              cacheSvc,
		Events:             eventSvc,
		Metrics:            metricsSvc,
		Logger:             logr,
		CourseHistoryLimit: cfg.Progress.CourseHistoryLimit,
	})

	readiness := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := handler.NewRouter(handler.RouterParams{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Identity: service.NewIdentityService(service.IdentityConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		}),
		Metrics:     metricsSvc,
		Settings:    settingsSvc,
		Enrollments: enrollmentSvc,
		Progress:    progressSvc,
		Readiness:   readiness,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}
