package logging

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap.Logger that knows how to pick up trace identifiers.
type Logger struct {
	*zap.Logger
}

// Config selects level, output and the service fields stamped on every line.
type Config struct {
	Level       string
	Development bool
	OutputPaths []string

	Service     string
	Version     string
	Environment string
}

// New builds a logger. Development mode writes colored console lines and
// keeps stack traces; otherwise lines are JSON.
func New(cfg Config) (*Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stdout"}
	}

	zcfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          "json",
		EncoderConfig:     jsonEncoder(),
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	if cfg.Development {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = consoleEncoder()
	}

	base, err := zcfg.Build(zap.Fields(serviceFields(cfg)...))
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: base}, nil
}

// Must is New for callers that cannot continue without a logger; a bad
// config yields a no-op logger.
func Must(cfg Config) *Logger {
	l, err := New(cfg)
	if err != nil {
		return NewNop()
	}
	return l
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger for a component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.Named(component)}
}

// WithContext returns a zap.Logger carrying trace_id and span_id of the span
// active in ctx.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	return FromContext(l.Logger, ctx)
}

// FromContext is WithContext for a plain zap.Logger.
func FromContext(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fields := tracing.LogFields(ctx); len(fields) > 0 {
		return logger.With(fields...)
	}
	return logger
}

func serviceFields(cfg Config) []zap.Field {
	var fields []zap.Field
	if cfg.Service != "" {
		fields = append(fields, zap.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		fields = append(fields, zap.String("version", cfg.Version))
	}
	if cfg.Environment != "" {
		fields = append(fields, zap.String("env", cfg.Environment))
	}
	return fields
}

func jsonEncoder() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	return enc
}

func consoleEncoder() zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return enc
}
