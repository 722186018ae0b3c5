package advertiser

import "github.com/jmalloc/diffuse/src/diffuse/dnssd"

// Event is a change observed by an advertiser.
//
// The concrete types are Registered, Updated, Unregistered, Conflict and
// Error.
type Event interface {
	isEvent()
}

// Registered is emitted when a service instance is registered.
type Registered struct {
	Service *dnssd.Service
}

// Updated is emitted when a registered instance is replaced via Update().
type Updated struct {
	Service *dnssd.Service
}

// Unregistered is emitted when a registered instance is unregistered.
type Unregistered struct {
	Service *dnssd.Service
}

// Conflict is reserved for name-conflict detection.
//
// Probing and conflict resolution are not implemented; this event is never
// emitted.
type Conflict struct {
	Original *dnssd.Service
	Renamed  *dnssd.Service
}

// Error is emitted when a transport operation fails.
type Error struct {
	Err error
}

func (Registered) isEvent()   {}
func (Updated) isEvent()      {}
func (Unregistered) isEvent() {}
func (Conflict) isEvent()     {}
func (Error) isEvent()        {}
