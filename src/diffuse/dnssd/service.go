package dnssd

import (
	"time"

	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
)

const (
	// DefaultDomain is the domain under which discovery is performed when
	// none is given.
	DefaultDomain = "local"

	// DefaultTTL is the default TTL for all DNS-SD records.
	//
	// See https://tools.ietf.org/html/rfc6762#section-10.
	DefaultTTL = 120 * time.Second

	// ServiceTypeEnumerationDomain is the meta-query name used to
	// enumerate the service types present on the local network.
	//
	// See https://tools.ietf.org/html/rfc6763#section-9.
	ServiceTypeEnumerationDomain = "_services._dns-sd._udp.local."

	// ServiceTypeLibp2p is the service type used by libp2p peer discovery.
	ServiceTypeLibp2p = "_p2p._udp.local."
)

// Service is a DNS-SD service instance, either discovered by a browser or
// registered with an advertiser.
type Service struct {
	// Name is the unqualified instance name, e.g. "My Printer". Unlike
	// other labels it may contain dots and spaces.
	Name string

	// Type is the service type, e.g. "_http._tcp".
	Type string

	// Domain is the domain under which the instance is discovered,
	// usually "local".
	Domain string

	// Host is the target host name, e.g. "myhost.local", without a
	// trailing dot. It is empty until the instance's SRV record has been
	// seen.
	Host string

	// Port is the TCP/UDP port the instance listens on. It is zero until
	// the instance's SRV record has been seen.
	Port uint16

	Priority uint16
	Weight   uint16

	IPv4s []dnswire.IPv4
	IPv6s []dnswire.IPv6

	Text Text

	// TTL is the time-to-live of the instance's records.
	TTL time.Duration

	// LastSeen is the time at which a record for this instance was last
	// received or refreshed.
	LastSeen time.Time
}

// NewService returns a service instance with the given unqualified name
// and service type, in the default domain.
func NewService(name, serviceType string) *Service {
	return &Service{
		Name:     name,
		Type:     serviceType,
		Domain:   DefaultDomain,
		TTL:      DefaultTTL,
		LastSeen: time.Now(),
	}
}

// FullName returns the fully-qualified instance name,
// e.g. "My Printer._http._tcp.local.".
//
// The full name is the service's identity: two services with the same full
// name (compared case-insensitively) are the same service.
func (s *Service) FullName() string {
	return s.Name + "." + s.FullType()
}

// FullType returns the fully-qualified service type,
// e.g. "_http._tcp.local.".
func (s *Service) FullType() string {
	return s.Type + "." + s.Domain + "."
}

// IsResolved returns true once the instance's host and port are known.
func (s *Service) IsResolved() bool {
	return s.Host != "" && s.Port != 0
}

// HasAddresses returns true if at least one IP address is known for the
// instance's host.
func (s *Service) HasAddresses() bool {
	return len(s.IPv4s) != 0 || len(s.IPv6s) != 0
}

// TTLInSeconds returns the record TTL in seconds, substituting DefaultTTL
// if no TTL is set.
func (s *Service) TTLInSeconds() uint32 {
	ttl := s.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return uint32(ttl.Seconds())
}

// Clone returns a deep copy of the service.
func (s *Service) Clone() *Service {
	c := *s

	c.IPv4s = append([]dnswire.IPv4(nil), s.IPv4s...)
	c.IPv6s = append([]dnswire.IPv6(nil), s.IPv6s...)
	c.Text = NewText(s.Text.Strings()...)

	return &c
}

// TypeName returns the fully-qualified service type as a DNS name.
func (s *Service) TypeName() (dnswire.Name, error) {
	return dnswire.ParseName(s.FullType())
}

// InstanceName returns the fully-qualified instance name as a DNS name.
//
// The instance label is attached with Prepend because it may contain dots.
func (s *Service) InstanceName() (dnswire.Name, error) {
	t, err := s.TypeName()
	if err != nil {
		return dnswire.Name{}, err
	}

	return t.Prepend(s.Name)
}

// HostName returns the target host as a DNS name.
func (s *Service) HostName() (dnswire.Name, error) {
	return dnswire.ParseName(s.Host)
}

// PTR returns the instance's PTR record, mapping the service type to the
// instance name.
//
// PTR records are "shared" in mDNS terms: several responders may hold
// records of the same name, so the cache-flush bit is never set.
//
// See https://tools.ietf.org/html/rfc6762#section-10.2.
func (s *Service) PTR() (dnswire.ResourceRecord, error) {
	t, err := s.TypeName()
	if err != nil {
		return dnswire.ResourceRecord{}, err
	}

	i, err := t.Prepend(s.Name)
	if err != nil {
		return dnswire.ResourceRecord{}, err
	}

	return dnswire.ResourceRecord{
		Name:  t,
		Class: dnswire.ClassIN,
		TTL:   s.TTLInSeconds(),
		Data:  dnswire.PTR{Target: i},
	}, nil
}

// SRV returns the instance's SRV record.
func (s *Service) SRV() (dnswire.ResourceRecord, error) {
	i, err := s.InstanceName()
	if err != nil {
		return dnswire.ResourceRecord{}, err
	}

	h, err := s.HostName()
	if err != nil {
		return dnswire.ResourceRecord{}, err
	}

	return dnswire.ResourceRecord{
		Name:       i,
		Class:      dnswire.ClassIN,
		CacheFlush: true,
		TTL:        s.TTLInSeconds(),
		Data: dnswire.SRV{
			Priority: s.Priority,
			Weight:   s.Weight,
			Port:     s.Port,
			Target:   h,
		},
	}, nil
}

// TXT returns the instance's TXT record.
func (s *Service) TXT() (dnswire.ResourceRecord, error) {
	i, err := s.InstanceName()
	if err != nil {
		return dnswire.ResourceRecord{}, err
	}

	return dnswire.ResourceRecord{
		Name:       i,
		Class:      dnswire.ClassIN,
		CacheFlush: true,
		TTL:        s.TTLInSeconds(),
		Data:       dnswire.TXT{Strings: s.Text.Strings()},
	}, nil
}

// AddressRecords returns one A record per known IPv4 address and one AAAA
// record per known IPv6 address, all on the instance's host name.
func (s *Service) AddressRecords() ([]dnswire.ResourceRecord, error) {
	h, err := s.HostName()
	if err != nil {
		return nil, err
	}

	records := make(
		[]dnswire.ResourceRecord,
		0,
		len(s.IPv4s)+len(s.IPv6s),
	)

	for _, a := range s.IPv4s {
		records = append(records, dnswire.ResourceRecord{
			Name:       h,
			Class:      dnswire.ClassIN,
			CacheFlush: true,
			TTL:        s.TTLInSeconds(),
			Data:       dnswire.A{Address: a},
		})
	}

	for _, a := range s.IPv6s {
		records = append(records, dnswire.ResourceRecord{
			Name:       h,
			Class:      dnswire.ClassIN,
			CacheFlush: true,
			TTL:        s.TTLInSeconds(),
			Data:       dnswire.AAAA{Address: a},
		})
	}

	return records, nil
}

// Records returns the instance's full record bundle: PTR, SRV, TXT, then
// the address records. This is the record set announced by an advertiser.
func (s *Service) Records() ([]dnswire.ResourceRecord, error) {
	ptr, err := s.PTR()
	if err != nil {
		return nil, err
	}

	srv, err := s.SRV()
	if err != nil {
		return nil, err
	}

	txt, err := s.TXT()
	if err != nil {
		return nil, err
	}

	addrs, err := s.AddressRecords()
	if err != nil {
		return nil, err
	}

	records := make([]dnswire.ResourceRecord, 0, 3+len(addrs))
	records = append(records, ptr, srv, txt)
	records = append(records, addrs...)

	return records, nil
}
