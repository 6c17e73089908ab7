package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"expensedesk/internal/amqp"
	"expensedesk/internal/cli"
	"expensedesk/internal/sheets"
	gsheet "expensedesk/internal/sheets/google"
	"expensedesk/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting expensedesk-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// History mirror is optional; admins still get in-app notifications.
	var mirror sheets.HistoryAppender
	if cfg.SheetsSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.SheetsSpreadsheetID,
			SheetName:       cfg.SheetsSheetName,
			CredentialsJSON: cfg.SheetsCredentialsJSON,
			CredentialsFile: cfg.SheetsCredentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("History mirror enabled", "spreadsheet_id", cfg.SheetsSpreadsheetID, "sheet", cfg.SheetsSheetName)
	} else {
		logger.Info("History mirror disabled - no spreadsheet ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	notifyWorker := worker.NewNotifyWorker(repo, mirror)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeExpenseEvents(ctx, func(msg *amqp.ExpenseEventMessage) error {
			return notifyWorker.HandleExpenseEvent(ctx, msg)
		})
	})

	g.Go(func() error {
		return notifyWorker.RunMirror(ctx, cfg.MirrorInterval, cfg.MirrorBatchSize)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
