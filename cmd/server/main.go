package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pulse/internal/platform/config"
	"pulse/internal/platform/logger"
	httptransport "pulse/internal/transport/http"
)

// main loads configuration and runs the HTTP server until interrupted.
// Wiring lives in the transport package; business logic in internal services.
func main() {
	cfgFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httptransport.Serve(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		stop()
		os.Exit(1)
	}
}
