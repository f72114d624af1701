package export

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"go.uber.org/zap"
)

// ErrExporterShutdown is returned by exporters used after Shutdown
var ErrExporterShutdown = errors.New("exporter is shut down")

// Exporter delivers batches of ended spans to a backend.
//
// Export must honor ctx: the batch processor relies on it to bound each
// flush by the export timeout. Export is never called concurrently by the
// batch processor.
type Exporter interface {
	Export(ctx context.Context, spans []*tracing.Span) error
	Shutdown(ctx context.Context) error
}

// LogExporter writes each span as a structured log line
type LogExporter struct {
	logger *zap.Logger
}

// NewLogExporter creates an exporter that logs spans through zap
func NewLogExporter(logger *zap.Logger) *LogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogExporter{logger: logger}
}

// Export logs every span in the batch
func (e *LogExporter) Export(ctx context.Context, spans []*tracing.Span) error {
	for _, span := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.logSpan(span)
	}
	return nil
}

func (e *LogExporter) logSpan(span *tracing.Span) {
	sc := span.SpanContext()
	status := span.Status()

	fields := []zap.Field{
		zap.String("trace_id", sc.TraceID.String()),
		zap.String("span_id", sc.SpanID.String()),
		zap.String("operation", span.Name()),
		zap.Stringer("kind", span.Kind()),
		zap.Duration("duration", span.Duration()),
		zap.Stringer("status", status.Code),
		zap.Any("attributes", span.Attributes()),
	}

	if parent := span.Parent(); parent.SpanID.IsValid() {
		fields = append(fields, zap.String("parent_id", parent.SpanID.String()))
	}
	if n := len(span.Events()); n > 0 {
		fields = append(fields, zap.Int("events", n))
	}

	if status.Code == tracing.StatusError {
		fields = append(fields, zap.String("status_message", status.Message))
		e.logger.Warn("span completed with error", fields...)
		return
	}
	e.logger.Info("span completed", fields...)
}

// Shutdown is a no-op
func (e *LogExporter) Shutdown(context.Context) error { return nil }
