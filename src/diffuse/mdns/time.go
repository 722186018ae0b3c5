package mdns

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Sleep sleeps for a duration of d on the given clock, or until ctx is
// canceled. It returns nil if the sleep duration passes before ctx is
// canceled.
func Sleep(ctx context.Context, c clock.Clock, d time.Duration) error {
	t := c.Timer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
