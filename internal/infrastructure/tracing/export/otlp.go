package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// TracesPath is appended to the collector endpoint
const TracesPath = "/v1/traces"

// DefaultEndpoint is the collector base URL used when none is configured
const DefaultEndpoint = "http://jaeger:4318"

// Compression settings
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
)

// OTLPConfig configures the OTLP/HTTP exporter
type OTLPConfig struct {
	// Endpoint is the collector base URL; TracesPath is appended unless
	// already present
	Endpoint    string
	Headers     map[string]string
	Compression string
	// MaxAttempts bounds delivery attempts per batch; retries also stop
	// when the export context expires
	MaxAttempts int
	// InitialBackoff is the first retry delay
	InitialBackoff time.Duration
	Resource       tracing.Resource
}

// OTLPExporter ships spans to a collector as OTLP/HTTP JSON
type OTLPExporter struct {
	cfg    OTLPConfig
	url    string
	client *resty.Client
	logger *zap.Logger
	closed atomic.Bool
}

// NewOTLPExporter creates an OTLP/HTTP JSON exporter
func NewOTLPExporter(cfg OTLPConfig, logger *zap.Logger) *OTLPExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}

	// Pooled transport from retryablehttp; retries are driven by backoff
	// so they stay inside the export timeout.
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	client := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "UserTrace-OTLP/1.0")
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	return &OTLPExporter{
		cfg:    cfg,
		url:    TracesURL(cfg.Endpoint),
		client: client,
		logger: logger,
	}
}

// TracesURL joins a collector base URL with TracesPath
func TracesURL(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, TracesPath) {
		return endpoint
	}
	return endpoint + TracesPath
}

// URL returns the full traces endpoint
func (e *OTLPExporter) URL() string { return e.url }

// Export serializes and posts one batch, retrying transient failures with
// exponential backoff until MaxAttempts or ctx expiry.
func (e *OTLPExporter) Export(ctx context.Context, spans []*tracing.Span) error {
	if e.closed.Load() {
		return ErrExporterShutdown
	}
	if len(spans) == 0 {
		return nil
	}

	body, err := e.encode(spans)
	if err != nil {
		return fmt.Errorf("encode spans: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.InitialBackoff
	policy.MaxInterval = 5 * time.Second

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, e.post(ctx, body)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(e.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.logger.Debug("retrying span export",
				zap.Error(err),
				zap.Duration("backoff", next),
				zap.Int("spans", len(spans)),
			)
		}),
	)
	return err
}

func (e *OTLPExporter) encode(spans []*tracing.Span) ([]byte, error) {
	payload, err := sonic.Marshal(NewTracesRequest(e.cfg.Resource, spans))
	if err != nil {
		return nil, err
	}
	if e.cfg.Compression != CompressionGzip {
		return payload, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// post performs one delivery attempt. Errors wrapped with
// backoff.Permanent are not retried.
func (e *OTLPExporter) post(ctx context.Context, body []byte) error {
	req := e.client.R().
		SetContext(ctx).
		SetBody(body)
	if e.cfg.Compression == CompressionGzip {
		req.SetHeader("Content-Encoding", "gzip")
	}

	resp, err := req.Post(e.url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		return fmt.Errorf("post spans: %w", err)
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		return &CollectorError{StatusCode: code, Body: resp.String()}
	default:
		return backoff.Permanent(&CollectorError{StatusCode: code, Body: resp.String()})
	}
}

// Shutdown marks the exporter closed
func (e *OTLPExporter) Shutdown(context.Context) error {
	e.closed.Store(true)
	return nil
}

// CollectorError is a non-2xx collector response
type CollectorError struct {
	StatusCode int
	Body       string
}

func (e *CollectorError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("collector responded %d: %s", e.StatusCode, body)
}

// IsCollectorError reports whether err came from a collector response
func IsCollectorError(err error) bool {
	var ce *CollectorError
	return errors.As(err, &ce)
}
