package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/diffuse/src/diffuse/dnssd"
	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
	"github.com/jmalloc/diffuse/src/diffuse/mdns"

	"golang.org/x/sync/errgroup"
)

// ErrNotStarted is returned by operations that require a started browser.
var ErrNotStarted = errors.New("browser: not started")

// Browser discovers DNS-SD service instances on the local network.
//
// A browser is an actor: browsing state is owned by a single goroutine
// that serializes public operations, incoming responses and periodic
// queries, so state transitions are linearizable and the event stream is
// FIFO.
type Browser struct {
	transport     mdns.Transport
	logger        logging.Logger
	clock         clock.Clock
	queryInterval time.Duration
	autoResolve   bool

	// m guards the lifecycle fields below.
	m        sync.Mutex
	commands chan command
	events   chan Event
	done     chan struct{}
	cancel   context.CancelFunc

	// browsing and services are owned by the run loop.
	browsing map[string]dnswire.Name
	services map[string]*dnssd.Service
}

// New returns a browser that discovers services via the given transport.
//
// IP family and interface selection are configured on the transport.
func New(t mdns.Transport, options ...Option) (*Browser, error) {
	b := &Browser{
		transport:     t,
		queryInterval: DefaultQueryInterval,
		autoResolve:   true,
	}

	for _, opt := range options {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if b.logger == nil {
		b.logger = logging.DefaultLogger
	}
	if b.clock == nil {
		b.clock = clock.New()
	}

	return b, nil
}

// Start starts the transport and begins processing incoming responses.
// It is idempotent.
func (b *Browser) Start(ctx context.Context) error {
	b.m.Lock()
	defer b.m.Unlock()

	if b.commands != nil {
		return nil
	}

	if err := b.transport.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	commands := make(chan command)
	events := make(chan Event, 16)
	done := make(chan struct{})

	b.commands = commands
	b.events = events
	b.done = done
	b.cancel = cancel
	b.browsing = map[string]dnswire.Name{}
	b.services = map[string]*dnssd.Service{}

	g, runCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return b.run(runCtx, commands)
	})
	g.Go(func() error {
		return b.periodicQuery(runCtx, commands)
	})

	go func() {
		_ = g.Wait()
		close(events)
		close(done)
	}()

	return nil
}

// Stop cancels the browser's tasks, stops the transport and closes the
// event stream. It is idempotent.
func (b *Browser) Stop() error {
	b.m.Lock()

	if b.commands == nil {
		b.m.Unlock()
		return nil
	}

	cancel := b.cancel
	done := b.done

	b.commands = nil
	b.cancel = nil
	b.done = nil

	b.m.Unlock()

	cancel()
	<-done

	return b.transport.Stop()
}

// Events returns the browser's event stream.
//
// The channel is closed when the browser is stopped; a subsequent Start()
// creates a fresh stream.
func (b *Browser) Events() <-chan Event {
	b.m.Lock()
	defer b.m.Unlock()

	return b.events
}

// Browse adds a fully-qualified service type, such as "_http._tcp.local.",
// to the browsing set and sends an immediate PTR query for it.
func (b *Browser) Browse(ctx context.Context, serviceType string) error {
	c := &browse{serviceType, make(chan error, 1)}

	if err := b.enqueue(ctx, c); err != nil {
		return err
	}

	select {
	case err := <-c.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopBrowsing removes a service type from the browsing set. A
// ServiceRemoved event is emitted for each known instance of the type.
func (b *Browser) StopBrowsing(ctx context.Context, serviceType string) error {
	c := &stopBrowsing{serviceType, make(chan error, 1)}

	if err := b.enqueue(ctx, c); err != nil {
		return err
	}

	select {
	case err := <-c.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve sends a unicast-response query for the SRV and TXT records of
// the given service instance, and returns the browser's current knowledge
// of it.
//
// The response, if any, is processed by the normal receive loop and
// surfaces as ServiceUpdated events.
func (b *Browser) Resolve(
	ctx context.Context,
	service *dnssd.Service,
) (*dnssd.Service, error) {
	c := &resolve{service, make(chan resolveResult, 1)}

	if err := b.enqueue(ctx, c); err != nil {
		return nil, err
	}

	select {
	case r := <-c.result:
		return r.service, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Services returns a snapshot of the currently known service instances.
func (b *Browser) Services(ctx context.Context) ([]*dnssd.Service, error) {
	c := &listServices{make(chan []*dnssd.Service, 1)}

	if err := b.enqueue(ctx, c); err != nil {
		return nil, err
	}

	select {
	case services := <-c.result:
		return services, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue submits a command to the run loop.
func (b *Browser) enqueue(ctx context.Context, c command) error {
	b.m.Lock()
	commands := b.commands
	done := b.done
	b.m.Unlock()

	if commands == nil {
		return ErrNotStarted
	}

	select {
	case commands <- c:
		return nil
	case <-done:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the browser's main loop. It owns the browsing state.
func (b *Browser) run(ctx context.Context, commands <-chan command) error {
	incoming := b.transport.Incoming()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case in, ok := <-incoming:
			if !ok {
				return nil
			}
			b.handle(ctx, in)

		case c := <-commands:
			c.execute(ctx, b)
		}
	}
}

// periodicQuery re-sends a PTR query for each browsed type at the
// configured interval. It terminates only on cancellation.
func (b *Browser) periodicQuery(ctx context.Context, commands chan<- command) error {
	for {
		if err := mdns.Sleep(ctx, b.clock, b.queryInterval); err != nil {
			return err
		}

		select {
		case commands <- queryAll{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// queryAll is the internal command enqueued by the periodic-query task.
type queryAll struct{}

func (queryAll) execute(ctx context.Context, b *Browser) {
	for _, name := range b.browsing {
		if err := b.transport.Send(ctx, mdns.NewQuery(name)); err != nil {
			logging.Log(b.logger, "unable to send periodic mDNS query: %s", err)
			b.emit(ctx, Error{err})
		}
	}
}

func (b *Browser) doBrowse(ctx context.Context, serviceType string) error {
	name, err := dnswire.ParseName(serviceType)
	if err != nil {
		return err
	}

	b.browsing[name.Key()] = name

	return b.transport.Send(ctx, mdns.NewQuery(name))
}

func (b *Browser) doStopBrowsing(ctx context.Context, serviceType string) error {
	name, err := dnswire.ParseName(serviceType)
	if err != nil {
		return err
	}

	key := name.Key()
	delete(b.browsing, key)

	for k, svc := range b.services {
		if asciiFold(svc.FullType()) == key {
			delete(b.services, k)
			b.emit(ctx, ServiceRemoved{svc.Clone()})
		}
	}

	return nil
}

func (b *Browser) doResolve(
	ctx context.Context,
	service *dnssd.Service,
) (*dnssd.Service, error) {
	name, err := service.InstanceName()
	if err != nil {
		return nil, err
	}

	q := mdns.NewMultiQuery(
		name,
		[]dnswire.Type{dnswire.TypeSRV, dnswire.TypeTXT},
		true,
	)

	if err := b.transport.Send(ctx, q); err != nil {
		return nil, err
	}

	if current, ok := b.services[name.Key()]; ok {
		return current.Clone(), nil
	}

	return service, nil
}

// handle dispatches a received message to the response demultiplexer.
// Queries are ignored; answering them is the advertiser's job.
func (b *Browser) handle(ctx context.Context, in mdns.Inbound) {
	if !in.Message.Response {
		return
	}

	for _, r := range in.Message.Answers {
		b.applyRecord(ctx, r)
	}
	for _, r := range in.Message.Additional {
		b.applyRecord(ctx, r)
	}
}

// applyRecord folds a single response record into the service table,
// emitting events for any visible change.
func (b *Browser) applyRecord(ctx context.Context, r dnswire.ResourceRecord) {
	switch d := r.Data.(type) {
	case dnswire.PTR:
		if r.TTL == 0 {
			// A zero TTL announces withdrawal ("goodbye").
			//
			// See https://tools.ietf.org/html/rfc6762#section-10.1.
			if svc, ok := b.services[d.Target.Key()]; ok {
				delete(b.services, d.Target.Key())
				b.emit(ctx, ServiceRemoved{svc})
			}
			return
		}

		typ, ok := b.browsing[r.Name.Key()]
		if !ok {
			return
		}

		key := d.Target.Key()
		if _, ok := b.services[key]; ok {
			return
		}

		instance, ok := instanceLabel(d.Target, typ)
		if !ok {
			return
		}

		serviceType, domain := splitType(typ)
		svc := &dnssd.Service{
			Name:     instance,
			Type:     serviceType,
			Domain:   domain,
			TTL:      time.Duration(r.TTL) * time.Second,
			LastSeen: b.clock.Now(),
		}

		b.services[key] = svc
		b.emit(ctx, ServiceFound{svc.Clone()})

		if b.autoResolve {
			if _, err := b.doResolve(ctx, svc); err != nil {
				logging.Log(b.logger, "unable to resolve '%s': %s", svc.FullName(), err)
			}
		}

	case dnswire.SRV:
		svc, ok := b.services[r.Name.Key()]
		if !ok {
			return
		}

		svc.Host = strings.TrimSuffix(d.Target.String(), ".")
		svc.Port = d.Port
		svc.Priority = d.Priority
		svc.Weight = d.Weight
		svc.LastSeen = b.clock.Now()

		b.emit(ctx, ServiceUpdated{svc.Clone()})

	case dnswire.TXT:
		svc, ok := b.services[r.Name.Key()]
		if !ok {
			return
		}

		svc.Text = dnssd.NewText(d.Strings...)
		svc.LastSeen = b.clock.Now()

		b.emit(ctx, ServiceUpdated{svc.Clone()})

	case dnswire.A:
		b.applyAddress(ctx, r.Name, func(svc *dnssd.Service) bool {
			for _, a := range svc.IPv4s {
				if a == d.Address {
					return false
				}
			}

			svc.IPv4s = append(svc.IPv4s, d.Address)
			return true
		})

	case dnswire.AAAA:
		b.applyAddress(ctx, r.Name, func(svc *dnssd.Service) bool {
			for _, a := range svc.IPv6s {
				if a == d.Address {
					return false
				}
			}

			svc.IPv6s = append(svc.IPv6s, d.Address)
			return true
		})
	}
}

// applyAddress applies an address record to every known service whose
// host matches the record's name. add reports whether the address was new.
func (b *Browser) applyAddress(
	ctx context.Context,
	host dnswire.Name,
	add func(*dnssd.Service) bool,
) {
	key := host.Key()

	for _, svc := range b.services {
		if svc.Host == "" || asciiFold(svc.Host)+"." != key {
			continue
		}

		if add(svc) {
			svc.LastSeen = b.clock.Now()
			b.emit(ctx, ServiceUpdated{svc.Clone()})
		}
	}
}

// emit delivers an event to the stream, abandoning it if the browser is
// stopped before the consumer accepts it.
func (b *Browser) emit(ctx context.Context, e Event) {
	select {
	case b.events <- e:
	case <-ctx.Done():
	}
}

// instanceLabel extracts the unqualified instance name from a PTR target:
// everything before the trailing service-type labels, re-joined with dots.
func instanceLabel(target, serviceType dnswire.Name) (string, bool) {
	if !target.HasSuffix(serviceType) {
		return "", false
	}

	rest := target.Labels()[:len(target.Labels())-len(serviceType.Labels())]
	if len(rest) == 0 {
		return "", false
	}

	return strings.Join(rest, "."), true
}

// splitType splits a fully-qualified service type into its type and
// domain components. Service types are two labels ("_service._proto"); any
// remaining labels form the domain.
func splitType(typ dnswire.Name) (serviceType, domain string) {
	labels := typ.Labels()

	if len(labels) > 2 {
		return strings.Join(labels[:2], "."), strings.Join(labels[2:], ".")
	}
	if len(labels) == 2 {
		return labels[0], labels[1]
	}

	return strings.Join(labels, "."), ""
}

// asciiFold lowercases the ASCII letters of s.
func asciiFold(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}, s)
}
