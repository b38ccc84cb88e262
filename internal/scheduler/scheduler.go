// Package scheduler runs the periodic auto-completion sweep in-process.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"activity-hub/internal/domain"
)

// Completer is the part of the activity service the sweep needs.
type Completer interface {
	AutoCompleteExpired(ctx context.Context, caller domain.Caller) (int, error)
}

type Scheduler struct {
	completer Completer
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

func New(completer Completer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		completer: completer,
		interval:  interval,
		timeout:   30 * time.Second,
		logger:    logger.With("component", "scheduler"),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
// A non-positive interval disables the scheduler.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("auto-complete scheduler disabled")
		return
	}

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.completer.AutoCompleteExpired(ctx, domain.InternalCaller())
	if err != nil {
		s.logger.Error("auto-complete sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("auto-complete sweep finished", "completed", n)
	}
}
