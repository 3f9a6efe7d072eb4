package main

import (
	"context"
	"errors"
	"os"

	"loanwise/internal/amqp"
	"loanwise/internal/backend"
	"loanwise/internal/cli"
	"loanwise/internal/log"
	"loanwise/internal/services"
	"loanwise/internal/worker"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	cli.MustValidate(logger, cfg)

	logger.Info("Starting loanwise-worker", "export", cfg.ExportBackend)

	thresholds, err := cli.Thresholds(cfg)
	if err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	exporter, err := backend.Exporter(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err, "backend", cfg.ExportBackend)
		os.Exit(1)
	}

	// Summaries are recomputed on every export; the worker keeps no cache.
	dashboard := services.NewDashboardService(repo, repo, nil, thresholds, logger)
	exportWorker := worker.NewExportWorker(repo, dashboard, exporter, cfg.WorkerBatchSize, logger)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			if err := amqpClient.ConsumeLoanEvents(ctx, exportWorker.HandleLoanEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", log.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on periodic reconciliation only")
	}

	exportWorker.Run(ctx, cfg.WorkerInterval)
	logger.Info("Worker stopped")
}
