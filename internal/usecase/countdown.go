// Package usecase contains application business logic.
package usecase

import (
	"context"
	"time"
)

// DefaultTickInterval is one logical countdown second.
const DefaultTickInterval = time.Second

// Countdown is a fixed-step timer. Ticks are not drift-compensated.
type Countdown struct {
	interval time.Duration
}

// NewCountdown creates a countdown that steps once per interval.
func NewCountdown(interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Countdown{interval: interval}
}

// Run emits seconds, seconds-1, ..., 1 one interval apart, then 0 when the
// countdown completes. It returns ctx.Err() if cancelled first, in which case
// 0 is never emitted.
func (c *Countdown) Run(ctx context.Context, seconds int, emit func(remaining int)) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for remaining := seconds; remaining > 0; remaining-- {
		emit(remaining)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	emit(0)
	return nil
}
