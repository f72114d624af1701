package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"go.uber.org/zap"
)

// BatchConfig is the export batching policy
type BatchConfig struct {
	MaxQueueSize       int
	MaxExportBatchSize int
	ScheduledDelay     time.Duration
	ExportTimeout      time.Duration
}

// DefaultBatchConfig returns the default policy
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxQueueSize:       100,
		MaxExportBatchSize: 10,
		ScheduledDelay:     500 * time.Millisecond,
		ExportTimeout:      30 * time.Second,
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	def := DefaultBatchConfig()
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.MaxExportBatchSize <= 0 {
		c.MaxExportBatchSize = def.MaxExportBatchSize
	}
	if c.MaxExportBatchSize > c.MaxQueueSize {
		c.MaxExportBatchSize = c.MaxQueueSize
	}
	if c.ScheduledDelay <= 0 {
		c.ScheduledDelay = def.ScheduledDelay
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = def.ExportTimeout
	}
	return c
}

// Stats are cumulative processor counters
type Stats struct {
	Enqueued      uint64
	Dropped       uint64
	Exported      uint64
	Batches       uint64
	FailedBatches uint64
	Pending       int
}

// BatchOption configures a BatchProcessor
type BatchOption func(*BatchProcessor)

// WithMetrics reports queue and export metrics
func WithMetrics(m *monitoring.Metrics) BatchOption {
	return func(p *BatchProcessor) {
		p.metrics = m
	}
}

// BatchProcessor buffers ended spans and exports them in batches from a
// single worker goroutine.
//
// A flush starts when MaxExportBatchSize spans are pending or when
// ScheduledDelay has passed since the previous flush. Spans arriving while
// MaxQueueSize spans are pending are dropped and counted.
type BatchProcessor struct {
	exporter Exporter
	cfg      BatchConfig
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu      sync.Mutex
	queue   []*tracing.Span
	stopped bool

	kick     chan struct{}
	flushReq chan chan struct{}
	stop     chan struct{}
	exited   chan struct{}
	shutdown sync.Once

	enqueued      atomic.Uint64
	dropped       atomic.Uint64
	exported      atomic.Uint64
	batches       atomic.Uint64
	failedBatches atomic.Uint64
}

// NewBatchProcessor creates a processor and starts its worker
func NewBatchProcessor(exporter Exporter, cfg BatchConfig, logger *zap.Logger, opts ...BatchOption) *BatchProcessor {
	p := newBatchProcessor(exporter, cfg, logger, opts...)
	go p.run()
	return p
}

func newBatchProcessor(exporter Exporter, cfg BatchConfig, logger *zap.Logger, opts ...BatchOption) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	p := &BatchProcessor{
		exporter: exporter,
		cfg:      cfg,
		logger:   logger,
		queue:    make([]*tracing.Span, 0, cfg.MaxQueueSize),
		kick:     make(chan struct{}, 1),
		flushReq: make(chan chan struct{}),
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective policy
func (p *BatchProcessor) Config() BatchConfig { return p.cfg }

// OnEnd enqueues an ended span. It never blocks on I/O.
func (p *BatchProcessor) OnEnd(span *tracing.Span) {
	if span == nil {
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.drop(monitoring.DropShutdown, 1)
		return
	}
	if len(p.queue) >= p.cfg.MaxQueueSize {
		p.mu.Unlock()
		p.drop(monitoring.DropQueueFull, 1)
		return
	}
	p.queue = append(p.queue, span)
	pending := len(p.queue)
	p.mu.Unlock()

	p.enqueued.Add(1)
	if p.metrics != nil {
		p.metrics.SpanEnqueued(pending)
	}

	if pending >= p.cfg.MaxExportBatchSize {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
}

func (p *BatchProcessor) drop(reason string, n int) {
	total := p.dropped.Add(uint64(n))
	if p.metrics != nil {
		p.metrics.SpansDroppedFor(reason, n)
	}
	// Log the first drop and then every hundredth to avoid log storms.
	if total == uint64(n) || total%100 == 0 {
		p.logger.Warn("dropping spans",
			zap.String("reason", reason),
			zap.Int("count", n),
			zap.Uint64("dropped_total", total),
		)
	}
}

// run is the worker loop; it is the only caller of exportBatch until
// Shutdown has stopped it.
func (p *BatchProcessor) run() {
	defer close(p.exited)

	timer := time.NewTimer(p.cfg.ScheduledDelay)
	defer timer.Stop()

	for {
		select {
		case <-p.stop:
			return

		case <-p.kick:
			flushed := false
			for p.Len() >= p.cfg.MaxExportBatchSize {
				p.exportBatch(context.Background())
				flushed = true
			}
			if flushed {
				timer.Reset(p.cfg.ScheduledDelay)
			}

		case <-timer.C:
			p.exportBatch(context.Background())
			timer.Reset(p.cfg.ScheduledDelay)

		case ack := <-p.flushReq:
			for p.Len() > 0 {
				p.exportBatch(context.Background())
			}
			timer.Reset(p.cfg.ScheduledDelay)
			close(ack)
		}
	}
}

// take removes up to n spans from the head of the queue
func (p *BatchProcessor) take(n int) []*tracing.Span {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > len(p.queue) {
		n = len(p.queue)
	}
	if n == 0 {
		return nil
	}
	batch := make([]*tracing.Span, n)
	copy(batch, p.queue[:n])
	// Shift remaining spans down so the backing array is reused.
	rest := copy(p.queue, p.queue[n:])
	clear(p.queue[rest:])
	p.queue = p.queue[:rest]
	return batch
}

// exportBatch sends one batch of at most MaxExportBatchSize spans. A failed
// batch is dropped and counted.
func (p *BatchProcessor) exportBatch(parent context.Context) {
	batch := p.take(p.cfg.MaxExportBatchSize)
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(parent, p.cfg.ExportTimeout)
	defer cancel()

	start := time.Now()
	err := p.safeExport(ctx, batch)
	elapsed := time.Since(start)

	p.batches.Add(1)
	if p.metrics != nil {
		p.metrics.BatchExported(len(batch), elapsed, err, p.Len())
	}

	if err != nil {
		p.failedBatches.Add(1)
		p.drop(monitoring.DropExportFailed, len(batch))
		p.logger.Error("span export failed",
			zap.Error(err),
			zap.Int("spans", len(batch)),
			zap.Duration("elapsed", elapsed),
		)
		return
	}
	p.exported.Add(uint64(len(batch)))
}

func (p *BatchProcessor) safeExport(ctx context.Context, batch []*tracing.Span) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("exporter panicked: %v", r)
		}
	}()
	return p.exporter.Export(ctx, batch)
}

// ForceFlush exports everything pending and waits for completion or ctx.
func (p *BatchProcessor) ForceFlush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case p.flushReq <- ack:
	case <-p.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting spans, waits for the worker to finish its
// current flush, exports what remains within ctx, and shuts down the
// exporter. Spans still pending when ctx expires are dropped.
func (p *BatchProcessor) Shutdown(ctx context.Context) error {
	var err error
	p.shutdown.Do(func() {
		err = p.doShutdown(ctx)
	})
	return err
}

func (p *BatchProcessor) doShutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	close(p.stop)
	select {
	case <-p.exited:
	case <-ctx.Done():
		if n := len(p.take(p.cfg.MaxQueueSize)); n > 0 {
			p.drop(monitoring.DropShutdown, n)
		}
		return fmt.Errorf("waiting for export worker: %w", ctx.Err())
	}

	// The worker has exited, so this goroutine is now the only flusher.
	for p.Len() > 0 {
		if ctx.Err() != nil {
			break
		}
		p.exportBatch(ctx)
	}

	var errs []error
	if remaining := len(p.take(p.cfg.MaxQueueSize)); remaining > 0 {
		p.drop(monitoring.DropShutdown, remaining)
		errs = append(errs, fmt.Errorf("final flush incomplete, %d spans dropped: %w", remaining, ctx.Err()))
	} else if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("final flush: %w", err))
	}
	if err := p.exporter.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown exporter: %w", err))
	}

	p.logger.Info("span processor stopped",
		zap.Uint64("exported", p.exported.Load()),
		zap.Uint64("dropped", p.dropped.Load()),
		zap.Uint64("failed_batches", p.failedBatches.Load()),
	)
	return errors.Join(errs...)
}

// Len returns the number of pending spans
func (p *BatchProcessor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stats returns a snapshot of the processor counters
func (p *BatchProcessor) Stats() Stats {
	return Stats{
		Enqueued:      p.enqueued.Load(),
		Dropped:       p.dropped.Load(),
		Exported:      p.exported.Load(),
		Batches:       p.batches.Load(),
		FailedBatches: p.failedBatches.Load(),
		Pending:       p.Len(),
	}
}
