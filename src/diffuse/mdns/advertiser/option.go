package advertiser

import (
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
)

const (
	// DefaultAnnouncementInterval is the default interval between periodic
	// re-announcements of each registered service.
	DefaultAnnouncementInterval = 20 * time.Second

	// DefaultAnnouncementCount is the default number of times a service's
	// record bundle is sent when it is first registered.
	DefaultAnnouncementCount = 3
)

// Option is a function that applies an option to an advertiser created by
// New().
type Option func(*Advertiser) error

// UseLogger returns an option that sets the logger used by the
// advertiser.
func UseLogger(l logging.Logger) Option {
	return func(a *Advertiser) error {
		a.logger = l
		return nil
	}
}

// UseClock returns an option that sets the clock used for announcement
// backoff and periodic refresh. It exists primarily so tests can drive the
// advertiser with a mock clock.
func UseClock(c clock.Clock) Option {
	return func(a *Advertiser) error {
		a.clock = c
		return nil
	}
}

// UseTTL returns an option that sets the TTL applied to the records of
// services that do not specify their own.
func UseTTL(d time.Duration) Option {
	return func(a *Advertiser) error {
		a.ttl = d
		return nil
	}
}

// UseAnnouncementInterval returns an option that sets the interval between
// periodic re-announcements.
func UseAnnouncementInterval(d time.Duration) Option {
	return func(a *Advertiser) error {
		a.announceInterval = d
		return nil
	}
}

// UseAnnouncementCount returns an option that sets how many times a
// service's record bundle is sent on registration.
func UseAnnouncementCount(n int) Option {
	return func(a *Advertiser) error {
		a.announceCount = n
		return nil
	}
}

// UseHostName returns an option that sets the unqualified host name used
// for services registered without one, e.g. "myhost".
//
// If this option is not provided, the machine's host name is used.
func UseHostName(name string) Option {
	return func(a *Advertiser) error {
		a.hostname = name
		return nil
	}
}

// UseInterface returns an option that restricts local-address enumeration
// to a single named network interface.
func UseInterface(name string) Option {
	return func(a *Advertiser) error {
		a.ifaceName = name
		return nil
	}
}

// UseAddresses returns an option that sets the advertised addresses
// explicitly, in place of interface enumeration.
func UseAddresses(ips ...net.IP) Option {
	return func(a *Advertiser) error {
		for _, ip := range ips {
			if v4, ok := dnswire.IPv4FromNetIP(ip); ok {
				a.v4 = append(a.v4, v4)
			} else if v6, ok := dnswire.IPv6FromNetIP(ip); ok {
				a.v6 = append(a.v6, v6)
			}
		}

		a.staticAddrs = true
		return nil
	}
}
