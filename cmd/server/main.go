package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/UserTrace/backend/internal/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override file and environment settings.
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Database.Driver, "db-driver", cfg.Database.Driver, "Database driver (postgres, mysql)")
	flag.StringVar(&cfg.Database.DSN, "db", cfg.Database.DSN, "Database DSN")
	flag.StringVar(&cfg.External.BaseURL, "external", cfg.External.BaseURL, "External service base URL")
	flag.StringVar(&cfg.Telemetry.Endpoint, "otlp-endpoint", cfg.Telemetry.Endpoint, "OTLP/HTTP collector endpoint")
	flag.StringVar(&cfg.Telemetry.Exporter, "exporter", cfg.Telemetry.Exporter, "Traces exporter (otlp, console, none)")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
