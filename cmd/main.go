package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/config"
	"github.com/oksasatya/account-service/internal/application"
	"github.com/oksasatya/account-service/internal/application/projection"
	"github.com/oksasatya/account-service/internal/infrastructure/messaging"
	pginfra "github.com/oksasatya/account-service/internal/infrastructure/postgres"
	"github.com/oksasatya/account-service/internal/infrastructure/rediscache"
	"github.com/oksasatya/account-service/internal/infrastructure/search"
	"github.com/oksasatya/account-service/internal/infrastructure/storage"
	handlers "github.com/oksasatya/account-service/internal/interface/http"
	"github.com/oksasatya/account-service/internal/interface/middleware"
	"github.com/oksasatya/account-service/internal/router"
	"github.com/oksasatya/account-service/pkg/helpers"
	"github.com/oksasatya/account-service/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.AppName, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	store := pginfra.NewEventStore(pool)
	cache := rediscache.NewAccountCache(rdb, cfg.CacheTTL)

	projectors := []projection.Handler{projection.NewAccountProjector(cache, store, logger)}

	// Elasticsearch is optional; without it search returns no results
	var searcher application.AccountSearcher
	if es, err := helpers.NewESClient(ctx, cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass); err != nil {
		logger.WithError(err).Warn("elasticsearch unavailable, account search disabled")
	} else {
		idx := search.NewAccountIndex(es, cfg.ESAccountsIndex, store, logger)
		if err := idx.EnsureIndex(ctx); err != nil {
			logger.WithError(err).Warn("elasticsearch index not ready, account search disabled")
		} else {
			projectors = append(projectors, idx)
			searcher = idx
		}
	}

	// RabbitMQ carries email jobs and integration events
	var pub *helpers.RabbitPublisher
	mailEnabled := cfg.MailSendEnabled
	if p, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue, cfg.RabbitMQEventsExchange); err != nil {
		logger.WithError(err).Warn("rabbitmq unavailable, emails and integration events disabled")
		mailEnabled = false
	} else {
		pub = p
		defer pub.Close()
		projectors = append(projectors, messaging.NewIntegrationEvents(pub))
	}

	mode := projection.Mode(cfg.ProjectionMode)
	if mode != projection.ModeSync && mode != projection.ModeAsync {
		logger.WithField("mode", cfg.ProjectionMode).Warn("unknown projection mode, using async")
		mode = projection.ModeAsync
	}
	dispatcher := projection.NewDispatcher(mode, cfg.ProjectionPartitions, cfg.ProjectionBuffer, logger, projectors...)

	if !cfg.AuthzEnforced {
		logger.Warn("AUTHZ_ENFORCED=false: anonymous requests are allowed and every such decision is logged")
	}
	authz := application.NewAuthorizer(cfg.AuthzEnforced, logger)
	hasher := helpers.NewBcryptHasher(cfg.BcryptCost)
	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	queries := application.NewAccountQueries(store, cache, authz, searcher, logger)
	commands := application.NewAccountCommands(store, queries, hasher, authz, dispatcher, pginfra.NewAuditLogRepository(pool), logger)

	var notifierPub *helpers.RabbitPublisher
	if mailEnabled {
		notifierPub = pub
	}
	notifier := messaging.NewEmailNotifier(notifierPub, cfg.ResetPasswordURL, cfg.ResetTokenTTL, mailEnabled, logger)
	notifier.AppName, notifier.CompanyName, notifier.SupportURL = cfg.AppName, cfg.CompanyName, cfg.SupportURL
	resets := application.NewPasswordResets(pginfra.NewPasswordResetRepository(pool), queries, commands, notifier, cfg.ResetTokenTTL, logger)
	auth := application.NewAuthService(store, queries, hasher, jwtManager, logger)

	var exporter *application.HistoryExporter
	if cfg.GCSExportBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			logger.WithError(err).Fatal("failed to init GCS client")
		}
		defer func() { _ = gcsClient.Close() }()
		exporter = application.NewHistoryExporter(queries, storage.NewGCSUploader(gcsClient, cfg.GCSExportBucket), logger)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) > 0 {
		r.Use(cors.New(corsCfg))
	}
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	reg := router.NewRegistry(r)
	router.InitModules(reg, router.Deps{
		Logger:       logger,
		Redis:        rdb,
		JWT:          jwtManager,
		AuthRequired: cfg.AuthzEnforced,
		DebugMetrics: cfg.DebugMetricsEnabled,
		HealthChecks: map[string]handlers.Pinger{
			"postgres": pool,
			"redis":    handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
		Accounts: handlers.NewAccountHandler(commands, queries, exporter, logger),
		Auth:     handlers.NewAuthHandler(auth, resets, logger, cfg.CookieDomain, cfg.CookieSecure),
	})
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("listen")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	// drain queued projections before the stores close
	dispatcher.Close()
	logger.WithFields(logrus.Fields{"mode": mode}).Info("server exited properly")
}
