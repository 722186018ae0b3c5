package transport

import (
	"context"
	"net"
)

// socket is a single-family mDNS socket.
//
// Join/bind semantics differ between the IP families, so each family binds
// its own socket; datagrams received on each are merged into the
// transport's single incoming stream.
type socket interface {
	// listen binds the socket and joins the mDNS multicast group on each
	// of the given interfaces.
	listen(ctx context.Context, ifaces []net.Interface) error

	// read reads the next datagram into buf, returning the number of
	// octets read and the source address.
	read(buf []byte) (int, *net.UDPAddr, error)

	// write sends a datagram to dst.
	write(p []byte, dst *net.UDPAddr) error

	// group returns the multicast group address for this socket's family.
	group() *net.UDPAddr

	// matches returns true if addr belongs to this socket's family.
	matches(addr *net.UDPAddr) bool

	// close closes the socket, unblocking any pending read.
	close() error
}
