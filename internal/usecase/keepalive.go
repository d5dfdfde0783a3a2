package usecase

import (
	"context"
	"log/slog"
	"time"

	"RucFilter/internal/ports"
)

// KeepAlive wires a ticker driver with a periodic session touch.
type KeepAlive struct {
	driver ports.Scheduler
	touch  func(ctx context.Context) error
	logger *slog.Logger
}

// NewKeepAlive returns a helper to start/stop the recurring touch.
func NewKeepAlive(driver ports.Scheduler, touch func(ctx context.Context) error, logger *slog.Logger) *KeepAlive {
	return &KeepAlive{driver: driver, touch: touch, logger: logger}
}

// Start registers the touch job with the provided scheduler.
func (k *KeepAlive) Start(ctx context.Context) error {
	if k.driver == nil || k.touch == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := k.touch(ctx); err != nil && k.logger != nil {
			k.logger.Warn("keep-alive failed", "at", trigger.Format(time.TimeOnly), "error", err)
		}
	}

	return k.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (k *KeepAlive) Stop(ctx context.Context) error {
	if k.driver == nil {
		return nil
	}

	return k.driver.Stop(ctx)
}
