//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddr configures a socket with SO_REUSEADDR and SO_REUSEPORT before
// it is bound, so that this process can share port 5353 with other mDNS
// stacks on the same host.
//
// See https://tools.ietf.org/html/rfc6762#section-15.1.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var serr error

	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if serr != nil {
			return
		}

		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}

	return serr
}
