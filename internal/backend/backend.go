// Package backend builds the pluggable infrastructure selected by
// configuration: the portfolio cache and the export target.
package backend

import (
	"context"
	"fmt"
	"time"

	"loanwise/internal/cache"
	"loanwise/internal/config"
	"loanwise/internal/core"
	"loanwise/internal/log"
	"loanwise/internal/sheets"
	gsheet "loanwise/internal/sheets/google"
	"loanwise/internal/sheets/memory"
)

type (
	// CacheType selects where portfolio summaries are cached.
	CacheType string

	// ExportType selects where schedules and snapshots are exported.
	ExportType string
)

const (
	CacheMemory CacheType = "memory"
	CacheRedis  CacheType = "redis"

	ExportMemory ExportType = "memory"
	ExportSheets ExportType = "sheets"
)

const cleanupInterval = time.Minute

func (t CacheType) IsValid() bool {
	return t == CacheMemory || t == CacheRedis
}

func (t ExportType) IsValid() bool {
	return t == ExportMemory || t == ExportSheets
}

// PortfolioCache returns the configured cache together with a function that
// releases it.
func PortfolioCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (cache.Cache[core.PortfolioSummary], func(), error) {
	switch t := CacheType(cfg.CacheBackend); t {
	case CacheMemory:
		lru := cache.NewLRUCache[core.PortfolioSummary](cfg.CacheSize, cfg.CacheTTL)
		manager := cache.NewManager(logger)
		manager.Register(lru)
		manager.StartCleanup(cleanupInterval)
		return lru, manager.Stop, nil
	case CacheRedis:
		client := cache.NewRedisClient(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Misses fall through to the store, so an unreachable Redis only
			// costs latency.
			logger.Warn("Redis not reachable", log.FieldError, err, "addr", cfg.RedisAddr)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Closing redis client failed", log.FieldError, err)
			}
		}
		return cache.NewRedisCache[core.PortfolioSummary](client, "loanwise", cfg.CacheTTL, logger), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", t)
	}
}

// Exporter returns the configured export target.
func Exporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.Exporter, error) {
	switch t := ExportType(cfg.ExportBackend); t {
	case ExportMemory:
		return memory.New(), nil
	case ExportSheets:
		client, err := gsheet.NewWithCredentials(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleScheduleSheetPrefix, gsheet.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("google sheets exporter: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported export backend: %s", t)
	}
}
