// Package scheduler runs background maintenance jobs on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicConfig holds configuration for a periodic job
type PeriodicConfig struct {
	Name string
	// Interval between ticks; a tick that lands during a run is dropped
	Interval time.Duration
	// Timeout bounds a single run; zero means Interval
	Timeout time.Duration
	// RunOnStart triggers one run immediately after Start
	RunOnStart bool
}

// Validate checks the configuration
func (c PeriodicConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Stats reports counters for a periodic job
type Stats struct {
	Runs     int64
	Failures int64
	LastRun  time.Time
	LastErr  string
}

// Periodic runs a Task on a ticker until stopped. Runs never overlap.
type Periodic struct {
	config PeriodicConfig
	task   Task
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	runs     atomic.Int64
	failures atomic.Int64
	lastMu   sync.Mutex
	lastRun  time.Time
	lastErr  string
}

// NewPeriodic creates a periodic job
func NewPeriodic(config PeriodicConfig, task Task, logger *zap.Logger) (*Periodic, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task is required", ErrInvalidConfig)
	}
	if config.Timeout == 0 {
		config.Timeout = config.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Periodic{
		config: config,
		task:   task,
		logger: logger.With(zap.String("job", config.Name)),
	}, nil
}

// Start starts the run loop. Calling Start on a running job is a no-op.
func (p *Periodic) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.runLoop(ctx)

	p.logger.Info("Periodic job started",
		zap.Duration("interval", p.config.Interval),
		zap.Duration("timeout", p.config.Timeout),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run, bounded by ctx.
func (p *Periodic) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Periodic job stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Periodic job stop timed out")
		return ctx.Err()
	}
}

// RunNow executes the task once in the caller's goroutine.
func (p *Periodic) RunNow(ctx context.Context) error {
	return p.execute(ctx)
}

// Stats returns a snapshot of the job counters
func (p *Periodic) Stats() Stats {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	return Stats{
		Runs:     p.runs.Load(),
		Failures: p.failures.Load(),
		LastRun:  p.lastRun,
		LastErr:  p.lastErr,
	}
}

func (p *Periodic) runLoop(ctx context.Context) {
	defer p.wg.Done()

	if p.config.RunOnStart {
		_ = p.execute(ctx)
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.execute(ctx)
		}
	}
}

func (p *Periodic) execute(ctx context.Context) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	runCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
		p.record(start, err)
	}()

	return p.task(runCtx)
}

func (p *Periodic) record(start time.Time, err error) {
	p.runs.Add(1)
	duration := time.Since(start)

	p.lastMu.Lock()
	p.lastRun = start
	if err != nil {
		p.lastErr = err.Error()
	} else {
		p.lastErr = ""
	}
	p.lastMu.Unlock()

	if err != nil {
		p.failures.Add(1)
		p.logger.Error("Periodic job failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("Periodic job completed", zap.Duration("duration", duration))
}
