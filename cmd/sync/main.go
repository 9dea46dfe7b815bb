package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"insightbot/internal/infra"
	"insightbot/internal/store"
	"insightbot/internal/warehouse"
)

const runTimeout = 10 * time.Minute

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().
		Str("run_id", uuid.NewString()).
		Logger()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	pool, err := infra.NewWarehousePool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect warehouse")
	}
	defer pool.Close()

	storeClient, err := store.NewClient(store.Options{
		BaseURL:    cfg.SupabaseURL,
		ServiceKey: cfg.SupabaseServiceKey,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build store client")
	}

	syncer := warehouse.NewSyncer(pool, storeClient, logger)
	counts, err := syncer.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("sync failed")
		os.Exit(1)
	}

	logger.Info().
		Int("search", counts.Search).
		Int("traffic", counts.Traffic).
		Int("attribution", counts.Attribution).
		Int("skipped", counts.Skipped).
		Msg("sync finished")
}
