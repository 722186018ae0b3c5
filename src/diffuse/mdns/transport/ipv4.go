package transport

import (
	"context"
	"net"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/diffuse/src/diffuse/mdns"

	ipvx "golang.org/x/net/ipv4"
)

// ipv4Socket is the IPv4 half of a UDP transport.
type ipv4Socket struct {
	logger logging.Logger
	conn   net.PacketConn
	pc     *ipvx.PacketConn
}

func (s *ipv4Socket) listen(ctx context.Context, ifaces []net.Interface) error {
	lc := net.ListenConfig{
		Control: reuseAddr,
	}

	// The wildcard address is bound, rather than the group address, so
	// that unicast queries from legacy resolvers are received as well.
	conn, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:5353")
	if err != nil {
		logListenError(s.logger, mdns.IPv4Address, err)
		return err
	}

	s.conn = conn
	s.pc = ipvx.NewPacketConn(conn)

	if err := joinGroup(
		s.pc,
		mdns.IPv4Group,
		ifaces,
		s.logger,
	); err != nil {
		s.conn.Close()
		return err
	}

	logListening(s.logger, mdns.IPv4Address)

	return nil
}

func (s *ipv4Socket) read(buf []byte) (int, *net.UDPAddr, error) {
	n, _, src, err := s.pc.ReadFrom(buf)
	if err != nil {
		return 0, nil, err
	}

	return n, src.(*net.UDPAddr), nil
}

func (s *ipv4Socket) write(p []byte, dst *net.UDPAddr) error {
	if _, err := s.pc.WriteTo(p, nil, dst); err != nil {
		logWriteError(s.logger, dst, s.group(), err)
		return err
	}

	return nil
}

func (s *ipv4Socket) group() *net.UDPAddr {
	return mdns.IPv4Address
}

func (s *ipv4Socket) matches(addr *net.UDPAddr) bool {
	return addr.IP.To4() != nil
}

func (s *ipv4Socket) close() error {
	return s.conn.Close()
}
