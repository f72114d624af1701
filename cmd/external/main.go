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

const defaultServiceName = "external-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		cfg.Telemetry.ServiceName = defaultServiceName
	}

	flag.StringVar(&cfg.External.Port, "port", cfg.External.Port, "Server port")
	flag.StringVar(&cfg.Telemetry.ServiceName, "service-name", cfg.Telemetry.ServiceName, "Service name reported in traces")
	flag.StringVar(&cfg.Telemetry.Endpoint, "otlp-endpoint", cfg.Telemetry.Endpoint, "OTLP/HTTP collector endpoint")
	flag.StringVar(&cfg.Telemetry.Exporter, "exporter", cfg.Telemetry.Exporter, "Traces exporter (otlp, console, none)")
	flag.DurationVar(&cfg.External.MinLatency.Duration, "min-latency", cfg.External.MinLatency.Duration, "Minimum simulated latency")
	flag.DurationVar(&cfg.External.MaxLatency.Duration, "max-latency", cfg.External.MaxLatency.Duration, "Maximum simulated latency")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewExternal(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
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
		log.Fatalf("Server error: %v", err)
	}
}
