package main

import (
	"context"
	"errors"

	"github.com/joho/godotenv"

	"github.com/oksasatya/account-service/config"
	"github.com/oksasatya/account-service/internal/application"
	"github.com/oksasatya/account-service/internal/application/projection"
	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
	pginfra "github.com/oksasatya/account-service/internal/infrastructure/postgres"
	"github.com/oksasatya/account-service/internal/infrastructure/rediscache"
	"github.com/oksasatya/account-service/pkg/helpers"
)

// seed creates and approves the initial platform admin through the command
// pipeline, so the admin has a normal event history. Running it again is a
// no-op once the email is taken.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	if cfg.AdminPassword == "" {
		logger.Fatal("ADMIN_PASSWORD is required")
	}

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.AppName+"-seed", 2, 1, cfg.DBMaxConnLife)
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
	dispatcher := projection.NewDispatcher(projection.ModeSync, 1, 0, logger, projection.NewAccountProjector(cache, store, logger))
	defer dispatcher.Close()

	authz := application.NewAuthorizer(true, logger)
	queries := application.NewAccountQueries(store, cache, authz, nil, logger)
	commands := application.NewAccountCommands(store, queries, helpers.NewBcryptHasher(cfg.BcryptCost), authz, dispatcher, pginfra.NewAuditLogRepository(pool), logger)

	seeder := &application.Requester{ID: "seed", Roles: []string{entity.RolePlatformAdmin}}
	acc, err := commands.Create(ctx, seeder, application.CreateAccountInput{
		Name:     cfg.AdminName,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Roles:    []string{entity.RolePlatformAdmin},
	})
	if errors.Is(err, errs.ErrConflict) {
		logger.WithField("email", cfg.AdminEmail).Info("admin already seeded")
		return
	}
	if err != nil {
		logger.WithError(err).Fatal("failed to create admin")
	}
	if _, err := commands.Approve(ctx, seeder, acc.ID); err != nil {
		logger.WithError(err).Fatal("failed to approve admin")
	}
	logger.WithField("account_id", acc.ID).WithField("email", acc.Email).Info("admin seeded")
}
