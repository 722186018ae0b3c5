package mdns

import (
	"context"
	"net"

	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
)

// Inbound is a decoded mDNS message paired with its source address.
type Inbound struct {
	Message *dnswire.Message
	Source  *net.UDPAddr
}

// Transport is an interface for sending and receiving mDNS messages.
//
// Implementations bind one socket per enabled IP family, join the mDNS
// multicast groups, and merge the datagrams received on each socket into a
// single incoming stream. Datagrams that fail to decode are dropped
// without surfacing an error; malformed mDNS traffic is normal on open
// networks.
type Transport interface {
	// Start binds the transport's sockets, joins the multicast groups and
	// begins receiving.
	Start(ctx context.Context) error

	// Stop leaves the multicast groups, closes the sockets and closes the
	// incoming channel.
	Stop() error

	// Send encodes m once and transmits it to every enabled multicast
	// group on the mDNS port.
	Send(ctx context.Context, m *dnswire.Message) error

	// SendTo transmits m to a single address, using the socket whose
	// family matches the address.
	SendTo(ctx context.Context, m *dnswire.Message, addr *net.UDPAddr) error

	// Incoming returns the stream of received messages. The channel is
	// closed when the transport is stopped.
	Incoming() <-chan Inbound
}
