package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/lakesage/lakesage/internal/config"
	"github.com/lakesage/lakesage/internal/observability"
	"github.com/lakesage/lakesage/internal/seed"
	s3store "github.com/lakesage/lakesage/internal/storage/s3"
)

func main() {
	seedValue := flag.Int64("seed", 1, "random seed for the generated dataset")
	accounts := flag.Int("accounts", 50, "number of accounts to generate")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("lakesage-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	seeder := &seed.Seeder{
		Store:  objectStore,
		Logger: logger,
		Config: seed.Config{Seed: *seedValue, Accounts: *accounts},
	}
	if err := seeder.Run(ctx); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
}
