package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"loanwise/internal/amqp"
	"loanwise/internal/backend"
	"loanwise/internal/cli"
	apphttp "loanwise/internal/http"
	"loanwise/internal/log"
	"loanwise/internal/services"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	cli.MustValidate(logger, cfg)

	thresholds, err := cli.Thresholds(cfg)
	if err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	portfolio, releaseCache, err := backend.PortfolioCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize cache", log.FieldError, err, "backend", cfg.CacheBackend)
		os.Exit(1)
	}
	defer releaseCache()

	// Left nil without AMQP so the services skip publishing.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Publishing loan events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - loan events are not published")
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:              ":" + cfg.Port,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:    cfg.RateLimitBurst,
		TrustedProxies:    cfg.TrustedProxies,
	}, apphttp.Deps{
		Loans:     services.NewLoanService(repo, publisher, logger),
		Dashboard: services.NewDashboardService(repo, repo, portfolio, thresholds, logger),
		Profiles:  services.NewProfileService(repo, logger),
		Ready:     repo.Ping,
	}, logger)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting loanwise server", "port", cfg.Port, "cache", cfg.CacheBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-stopped
	logger.Info("Server stopped gracefully")
}
