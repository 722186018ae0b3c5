package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
	"github.com/jmalloc/diffuse/src/diffuse/mdns"

	"go.uber.org/multierr"
)

// UDPTransport is a UDP multicast implementation of mdns.Transport.
//
// It binds one socket per enabled IP family and merges the datagrams
// received on each into a single incoming stream.
type UDPTransport struct {
	logger      logging.Logger
	ifaceName   string
	disableIPv4 bool
	disableIPv6 bool

	m        sync.Mutex
	sockets  []socket
	incoming chan mdns.Inbound
	done     chan struct{}
	readers  sync.WaitGroup
}

// Option is a function that applies an option to a transport created by
// New().
type Option func(*UDPTransport) error

// UseLogger returns an option that sets the logger used by the transport.
func UseLogger(l logging.Logger) Option {
	return func(t *UDPTransport) error {
		t.logger = l
		return nil
	}
}

// UseInterface returns an option that restricts the transport to a single
// named network interface.
//
// If this option is not provided, the multicast groups are joined on every
// up, multicast-capable interface.
func UseInterface(name string) Option {
	return func(t *UDPTransport) error {
		t.ifaceName = name
		return nil
	}
}

// DisableIPv4 is an option that prevents the transport from using IPv4.
func DisableIPv4(t *UDPTransport) error {
	t.disableIPv4 = true
	return nil
}

// DisableIPv6 is an option that prevents the transport from using IPv6.
func DisableIPv6(t *UDPTransport) error {
	t.disableIPv6 = true
	return nil
}

// New returns a new UDP multicast transport.
func New(options ...Option) (*UDPTransport, error) {
	t := &UDPTransport{}

	for _, opt := range options {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	if t.disableIPv4 && t.disableIPv6 {
		return nil, errors.New("transport: both IPv4 and IPv6 are disabled")
	}

	if t.logger == nil {
		t.logger = logging.DefaultLogger
	}

	return t, nil
}

// Start binds the transport's sockets, joins the multicast groups and
// begins receiving.
func (t *UDPTransport) Start(ctx context.Context) error {
	t.m.Lock()
	defer t.m.Unlock()

	if t.incoming != nil {
		return errors.New("transport: already started")
	}

	ifaces, err := mdns.MulticastInterfaces(t.ifaceName)
	if err != nil {
		return err
	}

	var sockets []socket

	if !t.disableIPv4 {
		sockets = append(sockets, &ipv4Socket{logger: t.logger})
	}
	if !t.disableIPv6 {
		sockets = append(sockets, &ipv6Socket{logger: t.logger})
	}

	for i, s := range sockets {
		if err := s.listen(ctx, ifaces); err != nil {
			for _, open := range sockets[:i] {
				open.close()
			}

			return err
		}
	}

	t.sockets = sockets
	t.incoming = make(chan mdns.Inbound, 16)
	t.done = make(chan struct{})

	for _, s := range sockets {
		t.readers.Add(1)
		go t.receive(s, t.incoming, t.done)
	}

	go func(readers *sync.WaitGroup, incoming chan mdns.Inbound) {
		readers.Wait()
		close(incoming)
	}(&t.readers, t.incoming)

	return nil
}

// Stop leaves the multicast groups, closes the sockets and closes the
// incoming channel.
func (t *UDPTransport) Stop() error {
	t.m.Lock()
	defer t.m.Unlock()

	if t.incoming == nil {
		return nil
	}

	close(t.done)

	var err error
	for _, s := range t.sockets {
		err = multierr.Append(err, s.close())
	}

	t.readers.Wait()

	t.sockets = nil
	t.incoming = nil
	t.done = nil

	return err
}

// Send encodes m once and transmits it to every enabled multicast group on
// the mDNS port.
func (t *UDPTransport) Send(ctx context.Context, m *dnswire.Message) error {
	t.m.Lock()
	sockets := t.sockets
	t.m.Unlock()

	if sockets == nil {
		return errors.New("transport: not started")
	}

	data := m.Encode()

	var err error
	for _, s := range sockets {
		err = multierr.Append(err, s.write(data, s.group()))
	}

	return err
}

// SendTo transmits m to a single address, using the socket whose family
// matches the address.
func (t *UDPTransport) SendTo(
	ctx context.Context,
	m *dnswire.Message,
	addr *net.UDPAddr,
) error {
	t.m.Lock()
	sockets := t.sockets
	t.m.Unlock()

	if sockets == nil {
		return errors.New("transport: not started")
	}

	for _, s := range sockets {
		if s.matches(addr) {
			return s.write(m.Encode(), addr)
		}
	}

	return fmt.Errorf("transport: no socket for address family of %s", addr)
}

// Incoming returns the stream of received messages. The channel is closed
// when the transport is stopped.
func (t *UDPTransport) Incoming() <-chan mdns.Inbound {
	t.m.Lock()
	defer t.m.Unlock()

	return t.incoming
}

// receive reads datagrams from s until it is closed, decoding each and
// delivering it to incoming. Datagrams that fail to decode are dropped.
func (t *UDPTransport) receive(
	s socket,
	incoming chan<- mdns.Inbound,
	done <-chan struct{},
) {
	defer t.readers.Done()

	buf := getBuffer()
	defer putBuffer(buf)

	for {
		n, src, err := s.read(buf)
		if err != nil {
			// The socket has been closed by Stop().
			return
		}

		m, err := dnswire.Decode(buf[:n])
		if err != nil {
			logDecodeError(t.logger, src, err)
			continue
		}

		select {
		case incoming <- mdns.Inbound{Message: m, Source: src}:
		case <-done:
			return
		}
	}
}
