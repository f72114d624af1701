/*
Package monitoring exposes Prometheus metrics for the users API, its calls
to the external service and the span export pipeline.

Collectors live on an injected prometheus.Registerer, so every server and
every test gets a private registry. Request latency samples carry the
trace_id of the request span as an exemplar, which lets a dashboard jump
from a slow bucket straight to the trace.

	metrics := monitoring.NewMetrics(registry)
	router.Use(lifecycle.Middleware(requests), monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "external", http.MethodGet)
	timer.Stop("200")

Snapshot backs the JSON health endpoint; /metrics serves the registry.
*/
package monitoring
