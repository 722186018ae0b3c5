package transport

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
)

func logListening(logger logging.Logger, addr *net.UDPAddr) {
	logging.Debug(
		logger,
		"listening for mDNS messages on %s",
		addr,
	)
}

func logListenError(logger logging.Logger, addr *net.UDPAddr, err error) {
	logging.Log(
		logger,
		"unable to listen for mDNS messages on %s: %s",
		addr,
		err,
	)
}

func logDecodeError(logger logging.Logger, src *net.UDPAddr, err error) {
	logging.Debug(
		logger,
		"dropped malformed mDNS datagram from %s: %s",
		src,
		err,
	)
}

func logWriteError(logger logging.Logger, dest, addr *net.UDPAddr, err error) {
	logging.Log(
		logger,
		"unable to send mDNS packet to %s via %s: %s",
		dest,
		addr,
		err,
	)
}
