package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"insightbot/internal/http/handlers"
	"insightbot/internal/http/httpapi"
	"insightbot/internal/infra"
	"insightbot/internal/providers/chart"
	"insightbot/internal/providers/llm"
	"insightbot/internal/report"
	"insightbot/internal/slack"
	"insightbot/internal/store"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	storeClient, err := store.NewClient(store.Options{
		BaseURL:    cfg.SupabaseURL,
		ServiceKey: cfg.SupabaseServiceKey,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build store client")
	}

	analyzer, err := llm.NewClient(llm.Options{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		BaseURL:   cfg.AnthropicBaseURL,
		MaxTokens: cfg.AnthropicMaxTokens,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build analysis client")
	}

	slackClient, err := slack.NewClient(slack.Options{
		BotToken: cfg.SlackBotToken,
		BaseURL:  cfg.SlackBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build slack client")
	}

	charts := chart.NewBuilder(cfg.QuickChartBaseURL)
	reports := report.NewService(storeClient, analyzer, charts, logger)

	dispatcher, err := report.NewDispatcher(storeClient, reports, slackClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build dispatcher")
	}

	app := handlers.NewApp(logger, storeClient, reports, slackClient, dispatcher)
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	// With DISPATCH_CRON=internal the dispatch loop runs in-process every
	// minute; otherwise an external scheduler is expected to POST
	// /dispatch/run on the same cadence.
	if cfg.DispatchCron == "internal" {
		c := cron.New()
		if _, err := c.AddFunc("* * * * *", func() {
			if _, err := dispatcher.Run(context.Background(), app.Now()); err != nil {
				logger.Error().Err(err).Msg("scheduled dispatch failed")
			}
		}); err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule dispatch loop")
		}
		c.Start()
		defer c.Stop()
		logger.Info().Msg("internal dispatch loop enabled")
	}

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
