package transport

import (
	"context"
	"net"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/diffuse/src/diffuse/mdns"

	ipvx "golang.org/x/net/ipv6"
)

// ipv6Socket is the IPv6 half of a UDP transport.
type ipv6Socket struct {
	logger logging.Logger
	conn   net.PacketConn
	pc     *ipvx.PacketConn
}

func (s *ipv6Socket) listen(ctx context.Context, ifaces []net.Interface) error {
	lc := net.ListenConfig{
		Control: reuseAddr,
	}

	conn, err := lc.ListenPacket(ctx, "udp6", "[::]:5353")
	if err != nil {
		logListenError(s.logger, mdns.IPv6Address, err)
		return err
	}

	s.conn = conn
	s.pc = ipvx.NewPacketConn(conn)

	if err := joinGroup(
		s.pc,
		mdns.IPv6Group,
		ifaces,
		s.logger,
	); err != nil {
		s.conn.Close()
		return err
	}

	logListening(s.logger, mdns.IPv6Address)

	return nil
}

func (s *ipv6Socket) read(buf []byte) (int, *net.UDPAddr, error) {
	n, _, src, err := s.pc.ReadFrom(buf)
	if err != nil {
		return 0, nil, err
	}

	return n, src.(*net.UDPAddr), nil
}

func (s *ipv6Socket) write(p []byte, dst *net.UDPAddr) error {
	if _, err := s.pc.WriteTo(p, nil, dst); err != nil {
		logWriteError(s.logger, dst, s.group(), err)
		return err
	}

	return nil
}

func (s *ipv6Socket) group() *net.UDPAddr {
	return mdns.IPv6Address
}

func (s *ipv6Socket) matches(addr *net.UDPAddr) bool {
	return addr.IP.To4() == nil
}

func (s *ipv6Socket) close() error {
	return s.conn.Close()
}
