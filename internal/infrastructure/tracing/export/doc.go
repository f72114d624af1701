/*
Package export delivers ended spans to tracing backends.

BatchProcessor is the tracing.Processor used in production. It queues
spans in memory and hands them to an Exporter from one worker goroutine,
so the request path never waits on the network:

	exp := export.NewOTLPExporter(export.OTLPConfig{
		Endpoint:    "http://jaeger:4318",
		Compression: export.CompressionGzip,
		MaxAttempts: 3,
		Resource:    resource,
	}, logger)
	proc := export.NewBatchProcessor(exp, export.DefaultBatchConfig(), logger,
		export.WithMetrics(metrics))
	tracer := tracing.New("user-service", logger, tracing.WithProcessor(proc))

	defer tracer.Shutdown(ctx) // final flush

Exporters:
  - OTLPExporter posts OTLP/HTTP JSON to <endpoint>/v1/traces
  - LogExporter writes one structured log line per span

When the queue is full new spans are dropped, never the ones already
queued. Batches the exporter rejects are dropped too. Both are counted in
Stats and in the backend_trace_spans_dropped_total metric.
*/
package export
