package transport

import (
	"fmt"
	"net"

	"github.com/dogmatiq/dodeca/logging"
)

// packetConn contains the methods common to *ipv4.PacketConn and
// *ipv6.PacketConn.
type packetConn interface {
	JoinGroup(*net.Interface, net.Addr) error
}

// joinGroup joins the mDNS multicast group on each of the given
// interfaces.
//
// Interfaces that refuse the join are skipped with a debug log; an error
// is returned only if the group could not be joined on any interface.
func joinGroup(
	pc packetConn,
	group net.IP,
	ifaces []net.Interface,
	logger logging.Logger,
) error {
	addr := &net.UDPAddr{
		IP: group,
	}

	joined := 0

	for _, i := range ifaces {
		i := i
		if err := pc.JoinGroup(&i, addr); err != nil {
			logging.Debug(
				logger,
				"unable to join the '%s' multicast group on the '%s' interface: %s",
				addr.IP,
				i.Name,
				err,
			)
		} else {
			joined++
		}
	}

	if joined == 0 {
		return fmt.Errorf(
			"unable to join the '%s' multicast group on any interfaces",
			addr.IP,
		)
	}

	return nil
}
