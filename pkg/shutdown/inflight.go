package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tracker runs background tasks and lets shutdown wait for them.
// Once Shutdown starts, new tasks are refused.
type Tracker struct {
	name   string
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewTracker creates a tracker
func NewTracker(name string, logger *zap.Logger) *Tracker {
	return &Tracker{name: name, logger: logger}
}

// Go runs fn in a goroutine. It returns false without running fn when the
// tracker is shutting down.
func (t *Tracker) Go(fn func()) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Warn("Task rejected during shutdown", zap.String("tracker", t.name))
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		fn()
	}()
	return true
}

// Dispatch runs fn via Go, discarding the result
func (t *Tracker) Dispatch(fn func()) {
	t.Go(fn)
}

// Shutdown refuses new tasks and waits for running ones until ctx expires
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	return waitGroup(ctx, &t.wg, t.logger, t.name)
}

// PeriodicWorker runs work immediately and then on every tick until stopped
type PeriodicWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPeriodicWorker creates a worker; nothing runs until Start
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{name: name, interval: interval, logger: logger}
}

// Start launches the loop. work receives a context cancelled by Shutdown.
func (pw *PeriodicWorker) Start(work func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	pw.cancel = cancel
	pw.wg.Add(1)

	go func() {
		defer pw.wg.Done()
		pw.logger.Info("Periodic worker started",
			zap.String("worker", pw.name),
			zap.Duration("interval", pw.interval),
		)

		ticker := time.NewTicker(pw.interval)
		defer ticker.Stop()

		work(ctx)
		for {
			select {
			case <-ctx.Done():
				pw.logger.Info("Periodic worker stopped", zap.String("worker", pw.name))
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	}()
}

// Shutdown cancels the running pass and waits for the loop to exit
func (pw *PeriodicWorker) Shutdown(ctx context.Context) error {
	if pw.cancel == nil {
		return nil
	}
	pw.cancel()
	return waitGroup(ctx, &pw.wg, pw.logger, pw.name)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup, logger *zap.Logger, name string) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn("Shutdown timeout, work may be incomplete", zap.String("name", name))
		return ctx.Err()
	}
}
