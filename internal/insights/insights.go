// Package insights assembles the insights engine: record source, result
// cache, metrics and service.
package insights

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"pulse/internal/dataset"
	"pulse/internal/insights/cache"
	"pulse/internal/insights/handler"
	"pulse/internal/insights/metrics"
	"pulse/internal/insights/ports"
	"pulse/internal/insights/service"
	"pulse/internal/platform/config"
	"pulse/pkg/platform/circuit"
)

const dbPingTimeout = 5 * time.Second

// Module holds the wired engine.
type Module struct {
	Service *service.Service
	Handler *handler.Handler
	Source  ports.RecordSource

	db *sql.DB
}

// New builds the engine from cfg. Records come from Postgres when a database
// URL is configured, otherwise from the CSV files loaded into memory.
// A nil registerer disables metrics.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Module, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Module{}
	if err := m.openSource(ctx, cfg, logger); err != nil {
		return nil, err
	}

	var im *metrics.Metrics
	if reg != nil {
		im = metrics.New(reg)
	}
	c, err := cache.New(cfg.CacheCapacity,
		cache.WithDefaultTTL(cfg.CacheTTL),
		cache.WithMetrics(im),
	)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}

	svc, err := service.New(m.Source, c,
		service.WithLogger(logger),
		service.WithMetrics(im),
		service.WithTTL(cfg.CacheTTL),
	)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("create insights service: %w", err)
	}
	m.Service = svc
	m.Handler = handler.New(svc, logger)
	return m, nil
}

func (m *Module) openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		store := dataset.NewPostgres(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return err
		}
		m.db = db
		m.Source = store
		logger.InfoContext(ctx, "using postgres record source")
		if cfg.CSVFallback {
			return m.withCSVFallback(ctx, cfg, logger, store)
		}
		return nil
	}

	records, err := dataset.NewLoader(dataset.WithLoaderLogger(logger)).Load(ctx, cfg.AdoptionCSV, cfg.UsageCSV)
	if err != nil {
		return err
	}
	m.Source = dataset.NewInMemoryStore(records...)
	logger.InfoContext(ctx, "using csv record source",
		"adoption_csv", cfg.AdoptionCSV,
		"usage_csv", cfg.UsageCSV,
		"records", len(records),
	)
	return nil
}

// withCSVFallback puts the CSV records behind primary. A fallback that fails
// to load is logged and skipped.
func (m *Module) withCSVFallback(ctx context.Context, cfg *config.Config, logger *slog.Logger, primary ports.RecordSource) error {
	records, err := dataset.NewLoader(dataset.WithLoaderLogger(logger)).Load(ctx, cfg.AdoptionCSV, cfg.UsageCSV)
	if err != nil {
		logger.WarnContext(ctx, "csv fallback unavailable", "error", err)
		return nil
	}
	src, err := dataset.NewFallbackSource(primary, dataset.NewInMemoryStore(records...),
		dataset.WithFallbackLogger(logger),
		dataset.WithBreaker(circuit.New("postgres")),
	)
	if err != nil {
		return err
	}
	m.Source = src
	logger.InfoContext(ctx, "csv fallback enabled", "records", len(records))
	return nil
}

// Close releases the database connection, if any.
func (m *Module) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
