// Package logging builds the zap loggers used across the backend.
//
// Production loggers write JSON and development loggers write colored
// console lines. Service name, version and environment are stamped on
// every line. Components take a plain *zap.Logger, usually obtained
// through Named, and treat nil as a no-op logger.
//
// FromContext adds the trace_id and span_id of the active span so log
// lines can be joined with exported traces:
//
//	logging.FromContext(logger, ctx).Error("Failed to load user", zap.Error(err))
package logging
