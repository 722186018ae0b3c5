package browser

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dogmatiq/dodeca/logging"
)

// DefaultQueryInterval is the default interval between periodic PTR
// queries for each browsed service type.
const DefaultQueryInterval = 120 * time.Second

// Option is a function that applies an option to a browser created by
// New().
type Option func(*Browser) error

// UseLogger returns an option that sets the logger used by the browser.
func UseLogger(l logging.Logger) Option {
	return func(b *Browser) error {
		b.logger = l
		return nil
	}
}

// UseClock returns an option that sets the clock used for periodic
// queries. It exists primarily so tests can drive the browser with a mock
// clock.
func UseClock(c clock.Clock) Option {
	return func(b *Browser) error {
		b.clock = c
		return nil
	}
}

// UseQueryInterval returns an option that sets the interval between
// periodic PTR queries.
func UseQueryInterval(d time.Duration) Option {
	return func(b *Browser) error {
		b.queryInterval = d
		return nil
	}
}

// DisableAutoResolve is an option that prevents the browser from
// automatically querying for the SRV and TXT records of newly discovered
// instances.
func DisableAutoResolve(b *Browser) error {
	b.autoResolve = false
	return nil
}
