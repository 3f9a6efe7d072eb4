// Package cli holds the start-up steps shared by cmd/loanwise and
// cmd/loanwise-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"loanwise/internal/config"
	"loanwise/internal/core"
	"loanwise/internal/log"
	"loanwise/internal/storage"
)

// LoadConfig reads the .env file when present and then the environment.
func LoadConfig() *config.Config {
	// Optional outside local development.
	_ = godotenv.Load()
	return config.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the slog
// default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.FromSettings(cfg.LogLevel, cfg.LogFormat, component))
	log.SetDefault(logger)
	return logger
}

// MustValidate exits the process when cfg is invalid.
func MustValidate(logger *log.Logger, cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
}

// Thresholds converts the configured DTI bounds.
func Thresholds(cfg *config.Config) (core.Thresholds, error) {
	t := core.Thresholds{
		HealthyMax: decimal.NewFromFloat(cfg.DTIHealthyMax),
		CautionMax: decimal.NewFromFloat(cfg.DTICautionMax),
	}
	if err := t.Validate(); err != nil {
		return core.Thresholds{}, fmt.Errorf("debt health thresholds: %w", err)
	}
	return t, nil
}

// InitSQLite opens the repository or exits the process.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
