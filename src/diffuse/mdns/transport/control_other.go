//go:build !unix && !windows

package transport

import "syscall"

// reuseAddr is a no-op on platforms without socket-level address reuse.
func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
