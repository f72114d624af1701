package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// ServiceName is the logical name of the external service in spans and
// metrics
const ServiceName = "external"

// Config configures the HTTP client
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// Retries is the number of extra attempts on transport errors. All
	// attempts share Timeout.
	Retries int
}

// Client calls the external service with rate limiting and a circuit
// breaker. It implements downstream.Caller.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
}

// serverError marks 5xx responses as breaker failures
type serverError struct {
	status int
}

func (e *serverError) Error() string { return "server error: HTTP " + strconv.Itoa(e.status) }

// NewClient creates a client. A nil metrics collector disables metrics.
func NewClient(cfg Config, metrics *monitoring.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.CheckRetry = retryTransportErrors

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "UserTrace-Backend/1.0").
		SetHeader("Accept", "application/json")
	if cfg.BaseURL != "" {
		restyClient.SetBaseURL(cfg.BaseURL)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breaker := resilience.New("external-service", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.6)
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		metrics: metrics,
	}
}

// retryTransportErrors retries only requests that got no response. Answered
// requests, 5xx included, go to the breaker as they are.
func retryTransportErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Call performs one request. Any HTTP response, including 4xx and 5xx, is
// returned without error; errors mean the request was not answered.
func (c *Client) Call(ctx context.Context, method, url string, header http.Header) (int, []byte, error) {
	timer := monitoring.NewTimer(c.metrics, ServiceName, method)

	if err := c.limiter.Wait(ctx); err != nil {
		c.failed(timer, method, "rate_limit")
		return 0, nil, fmt.Errorf("rate limit: %w", err)
	}

	resp, err := resilience.Call(ctx, c.breaker, func(ctx context.Context) (*resty.Response, error) {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetHeaderMultiValues(header).
			Execute(method, url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, &serverError{status: resp.StatusCode()}
		}
		return resp, nil
	})

	var se *serverError
	switch {
	case err == nil:
	case errors.As(err, &se):
		// Answered, but counted against the breaker.
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		c.failed(timer, method, "circuit_open")
		return 0, nil, err
	default:
		c.failed(timer, method, "transport")
		return 0, nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	timer.Stop(strconv.Itoa(resp.StatusCode()))
	return resp.StatusCode(), resp.Body(), nil
}

func (c *Client) failed(timer *monitoring.Timer, method, kind string) {
	timer.Stop("error")
	if c.metrics != nil {
		c.metrics.RecordServiceError(ServiceName, method, kind)
	}
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}
