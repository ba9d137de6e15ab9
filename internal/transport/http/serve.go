package httptransport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pulse/internal/insights"
	"pulse/internal/platform/config"
	"pulse/internal/platform/httpserver"
	"pulse/internal/platform/metrics"
)

// Serve wires the insights module behind the router and serves until ctx is done.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	module, err := insights.New(ctx, cfg, logger, reg)
	if err != nil {
		return fmt.Errorf("initialize insights: %w", err)
	}
	defer module.Close()

	router := NewRouter(RouterConfig{
		Logger:         logger,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, module.Handler)

	return httpserver.Run(ctx, httpserver.New(cfg.Addr, router), logger)
}
