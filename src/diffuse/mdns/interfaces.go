package mdns

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
)

// MulticastInterfaces returns the network interfaces that are up and
// capable of multicast.
//
// If name is non-empty, only the interface with that name is returned.
func MulticastInterfaces(name string) ([]net.Interface, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, err
		}

		return []net.Interface{*iface}, nil
	}

	candidates, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var matches []net.Interface
	const flags = net.FlagUp | net.FlagMulticast

	for _, i := range candidates {
		if (i.Flags & flags) == flags {
			matches = append(matches, i)
		}
	}

	if len(matches) == 0 {
		return nil, errors.New("mdns: no multicast interfaces available")
	}

	return matches, nil
}

// LocalAddresses returns the unicast IPv4 and IPv6 addresses of the given
// interfaces, excluding loopback addresses.
func LocalAddresses(ifaces []net.Interface) ([]dnswire.IPv4, []dnswire.IPv6, error) {
	var (
		v4 []dnswire.IPv4
		v6 []dnswire.IPv6
	)

	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, nil, err
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}

			if a, ok := dnswire.IPv4FromNetIP(ipnet.IP); ok {
				v4 = append(v4, a)
			} else if a, ok := dnswire.IPv6FromNetIP(ipnet.IP); ok {
				v6 = append(v6, a)
			}
		}
	}

	return v4, v6, nil
}

// LocalHostName returns the machine's host name with any domain suffix
// removed, suitable for forming an mDNS host name such as "host.local".
func LocalHostName() (string, error) {
	h, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("mdns: unable to determine host name: %w", err)
	}

	if i := strings.IndexByte(h, '.'); i != -1 {
		h = h[:i]
	}

	return h, nil
}
