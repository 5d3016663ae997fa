// Package main is the entry point for the taxquarter filing backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/taxquarter/backend/internal/api"
	"gitlab.com/taxquarter/backend/internal/config"
	"gitlab.com/taxquarter/backend/internal/database"
	"gitlab.com/taxquarter/backend/internal/filing"
	"gitlab.com/taxquarter/backend/internal/hmrc"
	"gitlab.com/taxquarter/backend/internal/logger"
	"gitlab.com/taxquarter/backend/internal/repository"
	"gitlab.com/taxquarter/backend/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("taxquarter-backend %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	logger.InitHashSalt()

	shutdownTelemetry, err := telemetry.Setup(ctx, version)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if err := database.SeedCategories(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to seed categories")
	}

	logger.Log.Info().Msg("Database initialized successfully")

	tokenRepo := repository.NewTokenRecordRepository(pool)
	bizRepo := repository.NewBusinessRepository(pool)
	catRepo := repository.NewCategoryRepository(pool)
	txRepo := repository.NewTransactionRepository(pool)
	subRepo := repository.NewSubmissionRepository(pool)

	oauth := hmrc.NewOAuthClient(cfg.HMRCBaseURL, cfg.HMRCClientID, cfg.HMRCClientSecret, cfg.HMRCRedirectURI, cfg.HMRCTimeout)
	tokens := hmrc.NewTokenSource(tokenRepo, oauth)
	fraud := hmrc.NewFraudHeaderGenerator(cfg.VendorProduct, cfg.VendorVersion)
	client := hmrc.NewClient(cfg.HMRCBaseURL, cfg.HMRCAPIVersion, tokens, fraud, cfg.HMRCTimeout)
	resolver := hmrc.NewObligationResolver(client, txRepo)

	aggregator := filing.NewAggregator(txRepo, catRepo)
	filingSvc := filing.NewService(client, aggregator, catRepo, subRepo)

	server := api.NewServer(cfg, oauth, tokenRepo, bizRepo, resolver, filingSvc)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("HTTP server failed")
	}
}
