package dnswire

import (
	"fmt"
	"net"
)

// IPv4 is an IPv4 address held by value.
//
// Equality and map-key hashing are byte-identical comparisons of the four
// octets.
type IPv4 [4]byte

// IPv4FromNetIP converts a net.IP to an IPv4 value.
// It returns false if ip is not an IPv4 address.
func IPv4FromNetIP(ip net.IP) (IPv4, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return IPv4{}, false
	}

	var a IPv4
	copy(a[:], v4)

	return a, true
}

// NetIP returns the address as a net.IP.
func (a IPv4) NetIP() net.IP {
	return net.IP(a[:])
}

func (a IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// IPv6 is an IPv6 address held by value.
//
// Equality and map-key hashing are byte-identical comparisons of the
// sixteen octets.
type IPv6 [16]byte

// IPv6FromNetIP converts a net.IP to an IPv6 value.
// It returns false if ip is an IPv4 address or otherwise not a 16-octet
// address.
func IPv6FromNetIP(ip net.IP) (IPv6, bool) {
	if ip.To4() != nil {
		return IPv6{}, false
	}

	v6 := ip.To16()
	if v6 == nil {
		return IPv6{}, false
	}

	var a IPv6
	copy(a[:], v6)

	return a, true
}

// NetIP returns the address as a net.IP.
func (a IPv6) NetIP() net.IP {
	return net.IP(a[:])
}

func (a IPv6) String() string {
	return a.NetIP().String()
}
