package browser

import "github.com/jmalloc/diffuse/src/diffuse/dnssd"

// Event is a change observed by a browser.
//
// The concrete types are ServiceFound, ServiceUpdated, ServiceRemoved and
// Error. Events carry snapshots; mutating an event's service has no effect
// on the browser's state.
type Event interface {
	isEvent()
}

// ServiceFound is emitted when an instance of a browsed service type is
// seen for the first time.
type ServiceFound struct {
	Service *dnssd.Service
}

// ServiceUpdated is emitted each time an SRV or TXT record is received for
// a known instance, whether or not its content differs from what was
// already known, and when a new address is learned for the instance's
// host. A repeated, already-known address emits nothing.
type ServiceUpdated struct {
	Service *dnssd.Service
}

// ServiceRemoved is emitted when a known instance announces its withdrawal
// or browsing for its type is stopped.
type ServiceRemoved struct {
	Service *dnssd.Service
}

// Error is emitted when a transport operation fails.
//
// Decoder faults never surface here; malformed datagrams are dropped by
// the transport.
type Error struct {
	Err error
}

func (ServiceFound) isEvent()   {}
func (ServiceUpdated) isEvent() {}
func (ServiceRemoved) isEvent() {}
func (Error) isEvent()          {}
