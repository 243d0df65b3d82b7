package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/config"
	"github.com/oksasatya/account-service/internal/application/projection"
	pginfra "github.com/oksasatya/account-service/internal/infrastructure/postgres"
	"github.com/oksasatya/account-service/internal/infrastructure/rediscache"
	"github.com/oksasatya/account-service/internal/infrastructure/search"
	"github.com/oksasatya/account-service/pkg/helpers"
)

// rebuild replays the event log through the read model projector and,
// with -search, the Elasticsearch index. Integration events are not
// republished.
func main() {
	withSearch := flag.Bool("search", false, "also reindex accounts in Elasticsearch")
	batch := flag.Int("batch", 500, "records read per page")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-rebuild", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.AppName+"-rebuild", 4, 1, cfg.DBMaxConnLife)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	store := pginfra.NewEventStore(pool)
	targets := []projection.Handler{projection.NewAccountProjector(rediscache.NewAccountCache(rdb, cfg.CacheTTL), store, logger)}
	if *withSearch {
		es, err := helpers.NewESClient(ctx, cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			logger.WithError(err).Fatal("failed to init elasticsearch client")
		}
		idx := search.NewAccountIndex(es, cfg.ESAccountsIndex, store, logger)
		if err := idx.EnsureIndex(ctx); err != nil {
			logger.WithError(err).Fatal("failed to prepare elasticsearch index")
		}
		targets = append(targets, idx)
	}

	started := time.Now()
	n, err := projection.NewRebuilder(store, *batch, logger, targets...).Run(ctx)
	fields := logrus.Fields{"replayed": n, "took": time.Since(started).String()}
	if err != nil {
		logger.WithError(err).WithFields(fields).Fatal("rebuild failed")
	}
	logger.WithFields(fields).Info("rebuild complete")
}
