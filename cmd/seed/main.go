package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/config"
	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/app/seed"
	"github.com/MrMohammed1/miran-search/models"
)

func main() {
	count := flag.Int("count", 5000, "number of products to create")
	batchSize := flag.Int("batch-size", 10000, "products committed per batch")
	useCopy := flag.Bool("copy", false, "load batches with COPY (postgres only)")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %s", err)
	}
	logger, err := logging.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %s", err)
	}
	defer logger.Sync()

	db, err := models.Open(cfg.Database.Driver, cfg.Database.DSN, logging.GormLevel(cfg.Log.Level))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	categories, err := seed.EnsureCategories(ctx, models.NewCategoriesRepository(db))
	if err != nil {
		logger.Fatal("failed to prepare categories", zap.Error(err))
	}
	used, err := seed.ExistingNames(ctx, db)
	if err != nil {
		logger.Fatal("failed to load existing products", zap.Error(err))
	}

	var sink seed.Sink = seed.NewGormSink(db)
	if *useCopy {
		if cfg.Database.Driver != models.DriverPostgres {
			logger.Fatal("--copy requires the postgres driver")
		}
		pqDB, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to open copy connection", zap.Error(err))
		}
		defer pqDB.Close()
		sink = seed.NewCopySink(pqDB)
	}

	logger.Info("creating products", zap.Int("count", *count), zap.Int("batch_size", *batchSize))
	gen := seed.NewGenerator(*randSeed, categories, used)
	n, err := seed.Run(ctx, gen, sink, *count, *batchSize, logger)
	if err != nil {
		logger.Fatal("seeding stopped", zap.Int("inserted", n), zap.Error(err))
	}
	logger.Info("successfully created products", zap.Int("count", n))
}
