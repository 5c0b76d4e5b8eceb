package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/T3chie-404/xand-mon-agent/internal/metrics"
	"github.com/T3chie-404/xand-mon-agent/internal/probe"
)

// Store receives the measurement produced by each probe cycle.
type Store interface {
	Update(metrics.Measurement)
}

// Scheduler drives the probe at a fixed period and publishes every outcome,
// good or bad, to the store. Probe errors are absorbed and logged; the loop
// only stops when its context is cancelled.
type Scheduler struct {
	prober   probe.Prober
	store    Store
	interval time.Duration
	timeout  time.Duration
	onResult func(probe.Result)
	logger   *slog.Logger
	wg       sync.WaitGroup
	failures atomic.Int64
}

// New creates a new Scheduler. Pass nil logger to use the default logger.
func New(prober probe.Prober, store Store, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Scheduler{
		prober:   prober,
		store:    store,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// SetOnResult sets the callback invoked after each completed probe cycle.
func (s *Scheduler) SetOnResult(fn func(probe.Result)) {
	s.onResult = fn
}

// ConsecutiveFailures returns the number of probe cycles that have failed
// since the last success.
func (s *Scheduler) ConsecutiveFailures() int64 {
	return s.failures.Load()
}

// Start launches the probe loop. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Wait blocks until the probe loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// run executes one cycle immediately, then one per tick. The ticker fires on
// the fixed period regardless of probe duration; a probe that outlasts its
// tick only delays this goroutine, and time.Ticker drops the ticks that
// elapsed in the meantime. Cycles therefore never overlap and the schedule
// never drifts.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result := s.prober.Probe(probeCtx)
	cancel()

	if result.Healthy {
		s.failures.Store(0)
		s.logger.Info("probe cycle",
			"slot", result.CurrentSlot,
			"cluster_slot", result.ClusterSlot,
			"lag", result.Lag,
		)
	} else {
		n := s.failures.Add(1)
		s.logger.Warn("probe failed",
			"kind", result.Failure,
			"error", result.Error,
			"consecutive_failures", n,
		)
	}

	s.store.Update(metrics.FromProbe(result))

	if s.onResult != nil {
		s.onResult(result)
	}
}
