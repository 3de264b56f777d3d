package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/lifeshare/bloodlink-api/internal/handler"
	"github.com/lifeshare/bloodlink-api/internal/middleware"
	"github.com/lifeshare/bloodlink-api/internal/realtime"
	"github.com/lifeshare/bloodlink-api/internal/repository"
	"github.com/lifeshare/bloodlink-api/internal/service"
	"github.com/lifeshare/bloodlink-api/pkg/cache"
	"github.com/lifeshare/bloodlink-api/pkg/config"
	"github.com/lifeshare/bloodlink-api/pkg/database"
	"github.com/lifeshare/bloodlink-api/pkg/jobs"
	"github.com/lifeshare/bloodlink-api/pkg/logger"
	corsmiddleware "github.com/lifeshare/bloodlink-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lifeshare/bloodlink-api/pkg/middleware/requestid"
	"github.com/lifeshare/bloodlink-api/pkg/sms"
)

// @title BloodLink API
// @version 1.0.0
// @description Blood donation coordination service
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, matching cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	donationRepo := repository.NewDonationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	hub := realtime.NewHub(logr, metricsSvc)
	go hub.Run(ctx)

	smsClient := sms.NewClient(cfg.SMS, logr)
	notifier := service.NewNotifierService(smsClient, logr, jobs.QueueConfig{
		Workers:    cfg.SMS.Workers,
		BufferSize: 64,
		MaxRetries: cfg.SMS.Retries,
		Logger:     logr,
	})
	notifier.Start(ctx)
	defer notifier.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	matcherSvc := service.NewMatcherService(userRepo, requestRepo, cacheRepo, logr, service.MatcherConfig{
		RadiusKm:    cfg.Matching.RadiusKm,
		CacheTTL:    cfg.Matching.CacheTTL,
		MaxPageSize: cfg.Matching.MaxPageSize,
	})
	requestSvc := service.NewRequestService(requestRepo, donationRepo, userRepo, matcherSvc, hub, validate, logr)
	donationSvc := service.NewDonationService(donationRepo, requestRepo, userRepo, notificationRepo, notifier, matcherSvc, hub, logr, cfg.Exports.MaxRows)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		User:         handler.NewUserHandler(userSvc),
		Request:      handler.NewRequestHandler(requestSvc, matcherSvc),
		Donation:     handler.NewDonationHandler(donationSvc),
		Notification: handler.NewNotificationHandler(notificationSvc),
		Realtime:     realtime.NewHandler(hub, authSvc, logr, cfg.Realtime),
		Metrics:      metricsSvc,
		AuthService:  authSvc,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logr.Sugar().Errorw("shutdown error", "error", err)
	}
}
