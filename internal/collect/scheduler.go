package collect

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler drives periodic collection from an injectable trigger source,
// so tests can fire ticks explicitly instead of waiting on a real ticker.
//
// A tick that arrives while a previous collection is still running is
// dropped (the collector reports ErrCollectionInProgress), not queued.
type Scheduler struct {
	collector *Collector
	trigger   <-chan time.Time
	log       *slog.Logger
}

// NewScheduler creates a scheduler firing on the given trigger channel.
func NewScheduler(collector *Collector, trigger <-chan time.Time, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{collector: collector, trigger: trigger, log: log}
}

// Every creates a ticker-driven scheduler collecting once per interval.
// The returned stop function releases the ticker.
func Every(collector *Collector, interval time.Duration, log *slog.Logger) (*Scheduler, func()) {
	ticker := time.NewTicker(interval)
	return NewScheduler(collector, ticker.C, log), ticker.Stop
}

// Run collects on every trigger until ctx is cancelled.
//
// Collection errors do not stop the loop: a transient platform outage on one
// tick should not end a months-long collection campaign. Each failure is
// logged and the scheduler waits for the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.trigger:
			result, err := s.collector.Collect(ctx)
			switch {
			case errors.Is(err, ErrCollectionInProgress):
				s.log.Warn("previous collection still running, skipping tick")
			case err != nil:
				s.log.Error("collection failed", "error", err)
			default:
				s.log.Info("scheduled collection complete", "seq", result.Seq)
			}
		}
	}
}
