package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/handler"
	"github.com/obf-labs/issuer-gateway/internal/middleware"
	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/internal/obf"
	"github.com/obf-labs/issuer-gateway/internal/repository"
	"github.com/obf-labs/issuer-gateway/internal/service"
	"github.com/obf-labs/issuer-gateway/internal/tasks"
	"github.com/obf-labs/issuer-gateway/pkg/cache"
	"github.com/obf-labs/issuer-gateway/pkg/config"
	"github.com/obf-labs/issuer-gateway/pkg/database"
	"github.com/obf-labs/issuer-gateway/pkg/jobs"
	"github.com/obf-labs/issuer-gateway/pkg/logger"
	corsmiddleware "github.com/obf-labs/issuer-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/obf-labs/issuer-gateway/pkg/middleware/requestid"
)

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without cache and review markers", zap.Error(err))
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	connRepo := repository.NewConnectionRepository(db)
	critRepo := repository.NewCriterionRepository(db)
	failedRepo := repository.NewFailedRecordRepository(db)
	userRepo := repository.NewUserRepository(db)
	backpackRepo := repository.NewBackpackRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()

	// API client factory bound to the stored credential sets.
	factory := &obf.Factory{
		Opts: obf.Options{
			LegacyClientID: cfg.OBF.LegacyClientID,
			Timeout:        cfg.OBF.RequestTimeout,
			PageSize:       cfg.OBF.PageSize,
			PageLimit:      cfg.OBF.PageLimit,
			PageDelay:      cfg.OBF.PageDelay,
		},
		Tokens:  connRepo,
		Conns:   connRepo,
		Logger:  logr,
		Observe: metrics.RecordUpstreamCall,
	}
	clientFactory := service.ClientFactory(func(conn models.OAuth2Connection) service.BadgeClient {
		return factory.ForConnection(conn)
	})

	// Services.
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.OBF.BadgeCacheTTL, logr, redisClient != nil)

	notifySvc := service.NewNotificationService(jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
	}, logr)
	notifySvc.Start(ctx)
	defer notifySvc.Stop()

	issuanceSvc := service.NewIssuanceService(userRepo, backpackRepo, critRepo, failedRepo, connRepo, clientFactory, notifySvc, metrics, logr, cfg.SiteRoot)

	var reviewSvc *service.ReviewService
	if redisClient != nil {
		marker := service.NewRedisReviewMarker(redisClient, 5*time.Minute)
		reviewSvc = service.NewReviewService(critRepo, userRepo, issuanceSvc, marker, logr)
	} else {
		reviewSvc = service.NewReviewService(critRepo, userRepo, issuanceSvc, nil, logr)
	}

	reconcileSvc := service.NewReconcileService(failedRepo, userRepo, critRepo, connRepo, clientFactory, metrics, logr, cfg.Tasks.ErrorGrace, cfg.SiteRoot)
	badgeSvc := service.NewBadgeService(connRepo, clientFactory, cacheSvc, cfg.OBF.BadgeCacheTTL, logr)
	connSvc := service.NewConnectionService(connRepo, clientFactory, cfg.OBF.DefaultURL, logr)
	critSvc := service.NewCriterionService(critRepo, nil, logr)
	failedSvc := service.NewFailedRecordService(failedRepo, logr)
	prefSvc := service.NewPreferenceService(userRepo, connRepo, clientFactory, logr)
	authSvc := service.NewAuthService(cfg.Auth, connRepo)

	// Background tasks.
	if cfg.Tasks.Enabled {
		scheduler := tasks.NewScheduler(logr,
			tasks.NewReconcileTask(reconcileSvc, cfg.Tasks.ReconcileInterval),
			tasks.NewEmailChangeTask(tasks.NewEmailChangeSweep(backpackRepo, userRepo, logr), cfg.Tasks.EmailChangeInterval),
			tasks.NewCertReminderTask(tasks.NewCertReminder(connRepo, notifySvc, logr), cfg.Tasks.CertReminderInterval),
		)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// HTTP surface.
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, middleware.JWT(authSvc), handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Badges:        handler.NewBadgeHandler(badgeSvc),
		Issuance:      handler.NewIssuanceHandler(issuanceSvc, badgeSvc),
		Criteria:      handler.NewCriterionHandler(critSvc),
		Connections:   handler.NewConnectionHandler(connSvc),
		FailedRecords: handler.NewFailedRecordHandler(failedSvc),
		Completions:   handler.NewCompletionHandler(reviewSvc),
		Preferences:   handler.NewPreferenceHandler(prefSvc),
		Metrics:       handler.NewMetricsHandler(metrics),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
