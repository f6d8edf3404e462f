// Package jobs schedules periodic maintenance for the engine.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweepFunc removes stale token rows and reports how many were deleted.
type SweepFunc func(ctx context.Context) (refresh int64, reset int64, err error)

// Sweeper runs a SweepFunc on a cron schedule. Runs never overlap.
type Sweeper struct {
	cron    *cron.Cron
	sweep   SweepFunc
	timeout time.Duration
	logger  *zap.Logger
	onError func(error)

	mu      sync.Mutex
	started bool
}

// Options configures a Sweeper.
type Options struct {
	// Schedule is a standard five-field cron expression, default "0 3 * * *".
	Schedule string
	// Timeout bounds a single run, default one minute.
	Timeout  time.Duration
	Location *time.Location
	Logger   *zap.Logger
	OnError  func(error)
}

// NewSweeper parses the schedule and returns a stopped Sweeper.
func NewSweeper(fn SweepFunc, opts Options) (*Sweeper, error) {
	if fn == nil {
		return nil, fmt.Errorf("jobs: sweep function is required")
	}
	if opts.Schedule == "" {
		opts.Schedule = "0 3 * * *"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s := &Sweeper{
		cron:    c,
		sweep:   fn,
		timeout: opts.Timeout,
		logger:  opts.Logger.Named("sweeper"),
		onError: opts.OnError,
	}
	if _, err := c.AddFunc(opts.Schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("jobs: invalid schedule %q: %w", opts.Schedule, err)
	}
	return s, nil
}

// RunOnce performs one sweep under the configured timeout.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	refreshed, resets, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		if s.onError != nil {
			s.onError(err)
		}
		return
	}
	s.logger.Info("sweep completed",
		zap.Int64("refresh_deleted", refreshed),
		zap.Int64("reset_deleted", resets),
		zap.Duration("took", time.Since(start)),
	)
}

// Start begins scheduling. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next returns the next scheduled run, or the zero time when stopped.
func (s *Sweeper) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
