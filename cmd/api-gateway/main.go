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

	_ "github.com/noah-isme/campus-book-exchange/api/swagger"
	"github.com/noah-isme/campus-book-exchange/internal/handler"
	"github.com/noah-isme/campus-book-exchange/internal/middleware"
	"github.com/noah-isme/campus-book-exchange/internal/repository"
	"github.com/noah-isme/campus-book-exchange/internal/service"
	"github.com/noah-isme/campus-book-exchange/pkg/cache"
	"github.com/noah-isme/campus-book-exchange/pkg/config"
	"github.com/noah-isme/campus-book-exchange/pkg/database"
	"github.com/noah-isme/campus-book-exchange/pkg/jobs"
	"github.com/noah-isme/campus-book-exchange/pkg/logger"
	"github.com/noah-isme/campus-book-exchange/pkg/mailer"
	corsmiddleware "github.com/noah-isme/campus-book-exchange/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-book-exchange/pkg/middleware/requestid"
	"github.com/noah-isme/campus-book-exchange/pkg/storage"
)

// @title Campus Book Exchange API
// @version 1.0.0
// @description Marketplace for second-hand textbooks: listings, bids, buy requests and settlements.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownGrace = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and rate limiting disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	covers, err := storage.NewLocalStorage(cfg.Storage.CoversDir)
	if err != nil {
		logr.Fatal("failed to prepare cover storage", zap.Error(err))
	}
	materialFiles, err := storage.NewLocalStorage(cfg.Storage.StudyMaterialsDir)
	if err != nil {
		logr.Fatal("failed to prepare study material storage", zap.Error(err))
	}

	outbound := newMailer(cfg.Mailer, logr)
	defer outbound.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheClient redis.UniversalClient
	if redisClient != nil {
		cacheClient = redisClient
	}
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(cacheClient, "campus-books", logr),
		metrics, cfg.Marketplace.ListingCacheTTL, logr, cacheClient != nil,
	)

	books := repository.NewBookRepository(db)
	requests := repository.NewBuyRequestRepository(db)
	users := repository.NewUserRepository(db)

	dispatcher := service.NewEmailDispatcher(outbound, jobs.QueueConfig{
		Workers:    cfg.Mailer.Workers,
		MaxRetries: cfg.Mailer.Retries,
		RetryDelay: 2 * time.Second,
	}, metrics, logr)
	dispatcher.Start(ctx)

	listings := service.NewListingService(books, covers, cacheSvc, cfg.Marketplace.ListingCacheTTL, validate, logr)
	ledger := service.NewLedgerService(books, requests, users, cacheSvc, metrics, service.LedgerConfig{
		BidIncrement: cfg.Marketplace.BidIncrement,
		BidRetries:   cfg.Marketplace.BidRetries,
	}, validate, logr)
	settlements := service.NewSettlementService(repository.NewSettlementRepository(db), requests, dispatcher, cacheSvc, metrics, validate, logr)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), logr)
	materials := service.NewStudyMaterialService(repository.NewStudyMaterialRepository(db), materialFiles, validate, logr)
	reports := service.NewReportService(requests, logr)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	var sweeper *service.SweeperService
	if cfg.Sweeper.Enabled {
		sweeper = service.NewSweeperService(books, settlements, cfg.Sweeper.Interval, jobs.QueueConfig{Workers: cfg.Sweeper.Workers}, metrics, logr)
		sweeper.Start(ctx)
	}

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimit)
	}

	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg, routeDeps{
		tokens:        tokens,
		limiter:       limiter,
		logger:        logr,
		metrics:       handler.NewMetricsHandler(metrics, checks),
		books:         handler.NewBookHandler(listings, cfg.Storage.MaxUploadSizeBytes),
		ledger:        handler.NewLedgerHandler(ledger),
		settlements:   handler.NewSettlementHandler(settlements, reports),
		notifications: handler.NewNotificationHandler(notifications),
		materials:     handler.NewStudyMaterialHandler(materials, cfg.Storage.MaxUploadSizeBytes),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	dispatcher.Stop()
}

func newMailer(cfg config.MailerConfig, logr *zap.Logger) mailer.Mailer {
	if !cfg.Enabled {
		return mailer.NewLogMailer(logr)
	}
	m, err := mailer.NewAMQPMailer(cfg.RabbitMQURL, cfg.Queue, logr)
	if err != nil {
		logr.Warn("rabbitmq unavailable, emails will only be logged", zap.Error(err))
		return mailer.NewLogMailer(logr)
	}
	return m
}
