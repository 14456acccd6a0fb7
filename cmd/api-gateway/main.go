package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-repo-api/api/swagger"
	"github.com/noah-isme/academic-repo-api/internal/authz"
	"github.com/noah-isme/academic-repo-api/internal/repository"
	"github.com/noah-isme/academic-repo-api/internal/service"
	"github.com/noah-isme/academic-repo-api/pkg/cache"
	"github.com/noah-isme/academic-repo-api/pkg/config"
	"github.com/noah-isme/academic-repo-api/pkg/database"
	"github.com/noah-isme/academic-repo-api/pkg/jobs"
	"github.com/noah-isme/academic-repo-api/pkg/logger"
	"github.com/noah-isme/academic-repo-api/pkg/mailer"
	"github.com/noah-isme/academic-repo-api/pkg/storage"
)

// @title Academic Repository API
// @version 1.0.0
// @description Academic resource repository with moderation workflow
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	rollback := flag.Bool("rollback", false, "revert the most recent migration and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if *rollback {
		if err := database.Rollback(db.DB, cfg.Database.MigrationsDir, logr); err != nil {
			logr.Fatal("failed to roll back migration", zap.Error(err))
		}
		return
	}

	if *migrateOnly || cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB, cfg.Database.MigrationsDir, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
		if *migrateOnly {
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := newFileStore(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init file store", zap.Error(err))
	}
	mail, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		logr.Fatal("failed to init mailer", zap.Error(err))
	}
	cacheRepo, closeCache, err := newCacheRepository(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to init cache", zap.Error(err))
	}
	defer closeCache()

	validate := validator.New()
	policy := authz.NewPolicy()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, true)

	userRepo := repository.NewUserRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	bookmarkRepo := repository.NewBookmarkRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, cacheSvc, validate, logr)
	notificationSvc := service.NewNotificationService(userRepo, notificationRepo, mail, metricsSvc, service.NotificationConfig{
		BatchSize:  cfg.Notifications.BatchSize,
		BatchDelay: cfg.Notifications.BatchDelay,
		AppURL:     cfg.Mail.AppURL,
	}, logr)

	fanOut := jobs.NewQueue("approval-fanout", notificationSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.QueueWorkers,
		BufferSize: cfg.Notifications.QueueBuffer,
		Logger:     logr,
	})
	// Fan-out runs to completion regardless of request lifetimes.
	fanOut.Start(context.Background())
	defer fanOut.Stop()

	resourceSvc := service.NewResourceService(service.ResourceServiceParams{
		Resources:   resourceRepo,
		Supervisors: userRepo,
		Files:       files,
		Signer:      storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL),
		Policy:      policy,
		Approvals:   fanOut,
		Cache:       cacheSvc,
		Metrics:     metricsSvc,
		Validator:   validate,
		Logger:      logr,
		Config: service.ResourceServiceConfig{
			APIPrefix:      cfg.APIPrefix,
			MaxFileSize:    cfg.Storage.MaxFileSizeBytes,
			AllowedMIMEs:   cfg.Storage.AllowedMIMEs,
			StatsCacheTTL:  cfg.Dashboard.CacheTTL,
			FanOutOnAdmin:  cfg.Notifications.FanOutOnAdmin,
			FanOutDisabled: cfg.Notifications.FanOutDisabled,
		},
	})

	router := newRouter(cfg, logr, routerDeps{
		auth:          authSvc,
		users:         userSvc,
		resources:     resourceSvc,
		comments:      service.NewCommentService(commentRepo, resourceRepo, policy, validate, logr),
		bookmarks:     service.NewBookmarkService(bookmarkRepo, resourceRepo, policy, cacheSvc, logr),
		notifications: notificationSvc,
		dashboard: service.NewDashboardService(dashboardRepo, notificationRepo, cacheSvc, service.DashboardServiceConfig{
			CacheTTL: cfg.Dashboard.CacheTTL,
			TopLimit: cfg.Dashboard.TopLimit,
		}, logr),
		exports: service.NewExportService(resourceRepo, logr),
		metrics: metricsSvc,
		db:      db,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newFileStore(ctx context.Context, cfg *config.Config) (storage.FileStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		return storage.NewS3Storage(ctx, cfg.Storage.S3)
	case "", config.StorageDriverLocal:
		return storage.NewLocalStorage(cfg.Storage.Dir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func(), error) {
	if cfg.Cache.Driver != config.CacheDriverRedis {
		return cache.NewMemoryStore(), func() {}, nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewCacheRepository(client, logr)
	return repo, func() { _ = repo.Close() }, nil
}
