// Package reconcile keeps denormalized recommendation counters in line with
// the recommendations that actually exist.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartpick/smartpick/internal/metrics"
	"github.com/smartpick/smartpick/internal/model"
)

const (
	// DefaultInterval is the pause between passes.
	DefaultInterval = 10 * time.Minute

	// lockName is the shared lock that keeps replicas from reconciling at once.
	lockName = "reconcile"
)

// Store is the subset of the record store the reconciler needs.
type Store interface {
	ListQueries(ctx context.Context) ([]*model.Query, error)
	CountRecommendationsByQuery(ctx context.Context) (map[string]int64, error)
	SetRecommendationCount(ctx context.Context, id string, from, to int64) (bool, error)
}

// Locker provides a lock shared by every replica. The release function is
// nil when the lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Worker periodically recomputes every query's recommendationCount.
type Worker struct {
	store    Store
	locker   Locker
	logger   *slog.Logger
	metrics  metrics.Recorder
	interval time.Duration

	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewWorker creates a reconciler. locker may be nil for single-instance runs.
func NewWorker(store Store, locker Locker, logger *slog.Logger, interval time.Duration, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		store:    store,
		locker:   locker,
		logger:   logger.With("component", "reconcile.worker"),
		metrics:  recorder,
		interval: interval,
	}
}

// Run starts the reconcile loop. The first pass runs immediately.
// Blocks until the context is cancelled or Shutdown is called. Run returns
// at once without a pass if Shutdown already happened.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	if w.stopped {
		w.mu.Unlock()
		w.logger.Info("reconcile worker shut down before start")
		return nil
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	w.logger.Info("reconcile worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.runLocked(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("reconcile pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// Shutdown stops the worker, letting an in-flight pass finish.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		w.logger.Info("reconcile worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("reconcile worker shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) runLocked(ctx context.Context) error {
	if w.locker != nil {
		release, ok, err := w.locker.TryLock(ctx, lockName, w.interval)
		if err != nil {
			// Redis trouble should not stop counters from healing.
			w.logger.Warn("reconcile lock unavailable, running unlocked", "error", err)
		} else if !ok {
			w.logger.Debug("reconcile lock held elsewhere, skipping pass")
			return nil
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					w.logger.Warn("failed to release reconcile lock", "error", err)
				}
			}()
		}
	}

	_, err := w.ReconcileOnce(ctx)
	return err
}

// ReconcileOnce rewrites every drifted counter and returns how many queries
// were corrected. Counters are read before recommendations are counted and
// written with compare-and-set, so a recommendation write that lands during
// the pass makes the swap miss instead of being overwritten.
func (w *Worker) ReconcileOnce(ctx context.Context) (int, error) {
	start := time.Now()

	queries, err := w.store.ListQueries(ctx)
	if err != nil {
		return 0, fmt.Errorf("list queries: %w", err)
	}

	counts, err := w.store.CountRecommendationsByQuery(ctx)
	if err != nil {
		return 0, fmt.Errorf("count recommendations: %w", err)
	}

	corrected := 0
	for _, q := range queries {
		want := counts[q.ID]
		if q.RecommendationCount == want {
			continue
		}

		swapped, err := w.store.SetRecommendationCount(ctx, q.ID, q.RecommendationCount, want)
		if err != nil {
			return corrected, fmt.Errorf("set recommendation count for %s: %w", q.ID, err)
		}
		if !swapped {
			w.logger.Debug("recommendation count moved during pass, skipping",
				"query_id", q.ID,
			)
			continue
		}
		corrected++

		w.logger.Info("recommendation count corrected",
			"query_id", q.ID,
			"from", q.RecommendationCount,
			"to", want,
		)
	}

	duration := time.Since(start)
	w.metrics.ObserveReconcile(corrected, duration)
	w.logger.Debug("reconcile pass complete",
		"queries", len(queries),
		"corrected", corrected,
		"duration_ms", duration.Milliseconds(),
	)

	return corrected, nil
}
