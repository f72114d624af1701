package server

import (
	"fmt"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/export"
	"go.uber.org/zap"
)

// NewTracer builds the process tracer from telemetry settings. The
// exporter kind selects OTLP/HTTP, zap log lines, or no export at all.
func NewTracer(cfg config.TelemetryConfig, logger *zap.Logger, metrics *monitoring.Metrics) (*tracing.Tracer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	resource := tracing.Resource{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
	}

	var exporter export.Exporter
	switch cfg.Exporter {
	case config.ExporterOTLP, "":
		otlp := export.NewOTLPExporter(export.OTLPConfig{
			Endpoint:    cfg.Endpoint,
			Headers:     cfg.Headers,
			Compression: cfg.Compression,
			MaxAttempts: cfg.MaxAttempts,
			Resource:    resource,
		}, logger.Named("otlp"))
		logger.Info("Exporting traces over OTLP/HTTP", zap.String("url", otlp.URL()))
		exporter = otlp
	case config.ExporterConsole:
		logger.Info("Exporting traces to the log")
		exporter = export.NewLogExporter(logger.Named("spans"))
	case config.ExporterNone:
		logger.Info("Trace export disabled")
		return tracing.New(cfg.ServiceName, logger, tracing.WithResource(resource)), nil
	default:
		return nil, fmt.Errorf("unsupported traces exporter %q", cfg.Exporter)
	}

	processor := export.NewBatchProcessor(exporter, export.BatchConfig{
		MaxQueueSize:       cfg.MaxQueueSize,
		MaxExportBatchSize: cfg.MaxExportBatchSize,
		ScheduledDelay:     cfg.ScheduleDelay.Duration,
		ExportTimeout:      cfg.ExportTimeout.Duration,
	}, logger.Named("batch"), export.WithMetrics(metrics))

	return tracing.New(cfg.ServiceName, logger,
		tracing.WithResource(resource),
		tracing.WithProcessor(processor),
	), nil
}
