package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// DefaultConcurrency is the number of images processed at once when no
// WithConcurrency option is given.
const DefaultConcurrency = 8

// BatchProcessor runs a fresh pipeline for each record with bounded
// concurrency.
//
// Cancelling the context stops new images from starting; images already
// in flight finish on a context that is never cancelled, so no file is
// left half written. A record that fails with model.ErrInvalidInputKind
// aborts the batch: it signals a rule table configuration error that
// would fail every image the same way.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline

	concurrency int

	logger *slog.Logger

	// results stores processed records by input index.
	results []*model.Record
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent images.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. pipelineFactory is
// called once per image.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs the pipeline on every record and returns the records
// that were processed, in input order. Records not started because of
// cancellation or an abort are left out. The error is ctx.Err() after a
// cancellation, or the aborting error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, records []*model.Record) ([]*model.Record, error) {
	return bp.ProcessBatchWithCallback(ctx, records, nil)
}

// ProcessBatchWithCallback is ProcessBatch with a callback invoked from the
// worker goroutine after each record completes. The callback must be safe
// for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	records []*model.Record,
	callback func(record *model.Record, index int),
) ([]*model.Record, error) {
	bp.logger.Info("starting batch processing",
		"total_images", len(records),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.Record, len(records))
	bp.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, record := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			p := bp.pipelineFactory()
			err := p.Execute(context.WithoutCancel(gctx), NewItem(record))

			bp.mu.Lock()
			bp.results[i] = record
			bp.mu.Unlock()

			if callback != nil {
				callback(record, i)
			}

			if errors.Is(err, model.ErrInvalidInputKind) {
				bp.logger.Error("aborting batch", "path", record.Path, "error", err)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.mu.Lock()
	done := make([]*model.Record, 0, len(bp.results))
	for _, r := range bp.results {
		if r != nil {
			done = append(done, r)
		}
	}
	bp.mu.Unlock()

	bp.logger.Info("batch processing complete",
		"total_images", len(records),
		"processed", len(done),
		"elapsed", time.Since(startTime),
	)
	return done, err
}
