package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type TokenSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type SweepObserver interface {
	ObserveSweep(n int64)
}

type Config struct {
	Interval     time.Duration
	SweepTimeout time.Duration
	// MaxBackoff caps the retry delay after consecutive failed sweeps.
	MaxBackoff time.Duration
}

// Sweeper periodically deletes expired refresh tokens.
type Sweeper struct {
	cfg    Config
	tokens TokenSweeper
	obs    SweepObserver
	log    *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, tokens TokenSweeper, obs SweepObserver, log *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 30 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = cfg.Interval
	}
	if log == nil {
		log = slog.Default()
	}

	return &Sweeper{cfg: cfg, tokens: tokens, obs: obs, log: log}
}

// Run sweeps once immediately, then on every interval until ctx is done.
// Failed sweeps are retried with exponential backoff.
func (s *Sweeper) Run(ctx context.Context) error {
	s.setReady(true)
	defer s.setReady(false)

	s.log.InfoContext(ctx, "token sweeper started", "interval", s.cfg.Interval)

	failures := 0
	wait := time.Duration(0)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("token sweeper received shutdown signal")
			return nil

		case <-timer.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				wait = ExponentialBackoff(failures, time.Second, s.cfg.MaxBackoff)
				failures++
			} else {
				failures = 0
				wait = s.cfg.Interval
			}
			timer.Reset(wait)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.cfg.SweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.tokens.SweepExpired(sweepCtx)
	if err != nil {
		s.log.ErrorContext(ctx, "token sweep failed", "err", err)
		return 0, err
	}

	if s.obs != nil {
		s.obs.ObserveSweep(n)
	}
	s.log.InfoContext(ctx, "token sweep done", "deleted", n, "duration_ms", time.Since(start).Milliseconds())

	return n, nil
}

func (s *Sweeper) Ready() bool {
	s.readyMu.RLock()
	defer s.readyMu.RUnlock()
	return s.ready
}

func (s *Sweeper) setReady(v bool) {
	s.readyMu.Lock()
	s.ready = v
	s.readyMu.Unlock()
}
