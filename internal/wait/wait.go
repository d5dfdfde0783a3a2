// Package wait holds the context-aware pause shared by stores, sessions and workers.
package wait

import (
	"context"
	"time"
)

// For blocks for d or until ctx is done. A non-positive d only reports ctx state.
func For(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
