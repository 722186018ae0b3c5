//go:build windows

package transport

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// reuseAddr configures a socket with SO_REUSEADDR before it is bound, so
// that this process can share port 5353 with other mDNS stacks on the same
// host. Windows has no SO_REUSEPORT; SO_REUSEADDR covers both behaviors.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var serr error

	err := c.Control(func(fd uintptr) {
		serr = windows.SetsockoptInt(
			windows.Handle(fd),
			windows.SOL_SOCKET,
			windows.SO_REUSEADDR,
			1,
		)
	})
	if err != nil {
		return err
	}

	return serr
}
