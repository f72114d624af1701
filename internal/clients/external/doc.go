// Package external is the client for the companion external service.
//
// Client performs the HTTP calls (resty over a pooled retryablehttp
// transport, rate limited and behind a circuit breaker). Service wraps it
// in downstream CLIENT spans and returns an empty result on any failure:
//
//	client := external.NewClient(external.Config{BaseURL: cfg.External.BaseURL}, metrics)
//	svc := external.NewService(cfg.External.BaseURL,
//		downstream.New(client, downstream.WithTracer(tracer)))
//
//	data := svc.GetUserData(ctx, 42) // map[string]any, never nil
package external
