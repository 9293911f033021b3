// Package worker runs periodic database maintenance: pruning per-day
// usage rows that have aged past the retention window.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scrapegate/scrapegate/internal/clock"
	"github.com/scrapegate/scrapegate/internal/metrics"
	"github.com/scrapegate/scrapegate/internal/repository"
)

// Worker owns the maintenance loop. Create with New, then Start and Stop.
type Worker struct {
	queries *repository.Queries
	clock   clock.Clock
	config  Config
	logger  *slog.Logger

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Worker with the given configuration.
func New(queries *repository.Queries, clk clock.Clock, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		queries: queries,
		clock:   clk,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins the maintenance loop in a background goroutine. One pass
// runs immediately so restarts don't defer pruning by a full interval.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("maintenance worker started",
		"interval", w.config.Interval,
		"daily_retention", w.config.DailyRetention)
}

// Stop signals the worker to stop and waits for an in-flight pass to
// finish, up to the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("stopping maintenance worker")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("maintenance worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("maintenance worker shutdown timeout exceeded")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.runOnce(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce executes a single maintenance pass under RunTimeout.
func (w *Worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	start := time.Now()
	metrics.MaintenanceStarted()

	if err := w.pruneDailyUsage(runCtx); err != nil {
		w.logger.Error("maintenance pass failed", "error", err)
		metrics.MaintenanceFailed()
		return
	}

	metrics.MaintenanceCompleted(time.Since(start))
}

// pruneDailyUsage deletes usage_days rows older than the retention window.
func (w *Worker) pruneDailyUsage(ctx context.Context) error {
	cutoff := w.clock.Now().Add(-w.config.DailyRetention)

	pruned, err := w.queries.DeleteDailyUsageBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune daily usage: %w", err)
	}

	if pruned > 0 {
		metrics.DailyRowsPruned(pruned)
		w.logger.Info("pruned daily usage rows",
			"count", pruned,
			"cutoff", cutoff.Format("2006-01-02"))
	}
	return nil
}
