package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// BatchProcessor handles concurrent scanning of multiple targets.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-scan execution
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each target.
	// Each scan writes to its own artifact directory, so each needs its
	// own step instances.
	pipelineFactory func(target string) *Pipeline

	// concurrency is the maximum number of concurrent scans.
	// Each concurrent scan holds a browser tab and possibly a
	// language-model request in flight.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed scan reports.
	// Access is synchronized via mutex.
	results []*model.ScanReport
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

// WithConcurrency sets the maximum number of concurrent scans.
// Default is 2 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each target to create a fresh
// pipeline instance. This ensures that pipeline state doesn't leak between
// scans and lets each target write to its own directory.
func NewBatchProcessor(pipelineFactory func(target string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     2,
		results:         make([]*model.ScanReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans multiple targets concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each target gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Returns all reports collected, even for targets that failed.
// The error return indicates if the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.ScanReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order
	bp.results = make([]*model.ScanReport, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("scanning target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			scan := model.NewScanReport(target)
			err := bp.pipelineFactory(target).Execute(ctx, scan)

			// Store the result regardless of error; the report carries
			// the error information when the scan failed.
			bp.mu.Lock()
			bp.results[i] = scan
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("scan failed",
					"target", target,
					"error", err,
				)
				// Don't return the error to errgroup; other scans continue.
				return nil
			}

			bp.logger.Info("scan completed", "target", target)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback scans multiple targets and calls a callback
// for each completed scan. This is useful for streaming results.
//
// The callback receives the report and the index of the target in the
// original slice. The callback is called from the goroutine that completed
// the scan, so it should be thread-safe if it accesses shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(scan *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			scan := model.NewScanReport(target)
			_ = bp.pipelineFactory(target).Execute(ctx, scan) //nolint:errcheck // Error is stored in report

			callback(scan, i)
			return nil
		})
	}

	return g.Wait()
}
