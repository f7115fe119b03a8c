package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/config"
	tlog "tally/internal/log"
	"tally/internal/sheets"
	gsheet "tally/internal/sheets/google"
	"tally/internal/sheets/memory"
	"tally/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateExporter)

	logger.Info("Starting tally-exporter")

	var writer sheets.EventWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", tlog.FieldError, err)
			os.Exit(1)
		}
		if err := client.EnsureHeader(context.Background()); err != nil {
			logger.Error("Failed to prepare audit sheet", tlog.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		writer = memory.New()
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, events are kept in memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", tlog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exporter := worker.NewExportWorker(writer)
	cacheManager := cache.NewManager(logger.WithComponent(tlog.ComponentCache).Logger)
	if seen := exporter.Seen(); seen != nil {
		cacheManager.Register(seen)
	}
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := amqpClient.ConsumeJournalEvents(ctx, exporter.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", tlog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Exporter shutdown complete")
}
