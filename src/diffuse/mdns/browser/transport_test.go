package browser_test

import (
	"context"
	"net"
	"sync"

	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
	"github.com/jmalloc/diffuse/src/diffuse/mdns"
)

// transportStub is an in-memory mdns.Transport for driving actors in
// tests.
type transportStub struct {
	m        sync.Mutex
	incoming chan mdns.Inbound
	closed   bool
	sent     []*dnswire.Message
	sentTo   []*net.UDPAddr
}

func newTransportStub() *transportStub {
	return &transportStub{
		incoming: make(chan mdns.Inbound, 16),
	}
}

func (t *transportStub) Start(ctx context.Context) error {
	return nil
}

func (t *transportStub) Stop() error {
	t.m.Lock()
	defer t.m.Unlock()

	if !t.closed {
		t.closed = true
		close(t.incoming)
	}

	return nil
}

func (t *transportStub) Send(ctx context.Context, m *dnswire.Message) error {
	t.m.Lock()
	defer t.m.Unlock()

	t.sent = append(t.sent, m)
	t.sentTo = append(t.sentTo, nil)

	return nil
}

func (t *transportStub) SendTo(
	ctx context.Context,
	m *dnswire.Message,
	addr *net.UDPAddr,
) error {
	t.m.Lock()
	defer t.m.Unlock()

	t.sent = append(t.sent, m)
	t.sentTo = append(t.sentTo, addr)

	return nil
}

func (t *transportStub) Incoming() <-chan mdns.Inbound {
	return t.incoming
}

// deliver feeds a message into the incoming stream as though it had been
// received from source.
func (t *transportStub) deliver(m *dnswire.Message, source *net.UDPAddr) {
	if source == nil {
		source = &net.UDPAddr{IP: net.IPv4(192, 168, 1, 2), Port: mdns.Port}
	}

	t.incoming <- mdns.Inbound{Message: m, Source: source}
}

func (t *transportStub) sentCount() int {
	t.m.Lock()
	defer t.m.Unlock()

	return len(t.sent)
}

func (t *transportStub) sentMessage(i int) *dnswire.Message {
	t.m.Lock()
	defer t.m.Unlock()

	return t.sent[i]
}

func (t *transportStub) lastSent() *dnswire.Message {
	t.m.Lock()
	defer t.m.Unlock()

	return t.sent[len(t.sent)-1]
}

func (t *transportStub) sentToAddr(i int) *net.UDPAddr {
	t.m.Lock()
	defer t.m.Unlock()

	return t.sentTo[i]
}
