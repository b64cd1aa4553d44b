package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"tally/internal/amqp"
	"tally/internal/config"
	applog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/sheets"
	gsheet "tally/internal/sheets/google"
	mem "tally/internal/sheets/memory"
	"tally/internal/storage"
	"tally/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent("worker")
	applog.SetDefault(logger)

	logger.Info("Starting tally-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without a spreadsheet the mirror runs against an in-memory sink, so
	// the queue still drains and the recurring scheduler still fires.
	var (
		writer  sheets.TransactionWriter
		remover sheets.TransactionRemover
	)
	if cfg.MirrorEnabled {
		cli, err := gsheet.New(ctx, cfg.SpreadsheetID, cfg.SheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer, remover = cli, cli
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)
	} else {
		store := mem.New()
		writer, remover = store, store
		logger.Info("Spreadsheet mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(repo, writer, remover)
	transactions := services.NewTransactionService(repo, amqpClient)
	recurring := services.NewRecurringService(repo, transactions)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mirror.Run(ctx, amqpClient)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.RecurringInterval)
		defer ticker.Stop()

		// Catch up on anything that came due while the worker was down.
		if _, err := recurring.ProcessDue(ctx, time.Now()); err != nil {
			logger.Error("Recurring processing failed", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := recurring.ProcessDue(ctx, time.Now()); err != nil {
					logger.Error("Recurring processing failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
