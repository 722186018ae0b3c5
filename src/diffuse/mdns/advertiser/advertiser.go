package advertiser

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

// Predefined errors surfaced by advertiser operations.
var (
	// ErrNotStarted is returned by operations that require a started
	// advertiser.
	ErrNotStarted = errors.New("advertiser: not started")

	// ErrServiceNotFound is returned by Update() when the service's full
	// name is not registered.
	ErrServiceNotFound = errors.New("advertiser: service is not registered")

	// ErrMissingPort is returned by Register() when the service does not
	// specify a port.
	ErrMissingPort = errors.New("advertiser: service port must not be zero")
)

// Advertiser announces DNS-SD service instances on the local network and
// answers mDNS queries for them.
//
// Like the browser, an advertiser is an actor: the service table is owned
// by a single goroutine that serializes public operations, incoming
// queries, announcements and periodic refresh.
type Advertiser struct {
	transport        mdns.Transport
	logger           logging.Logger
	clock            clock.Clock
	ttl              time.Duration
	announceInterval time.Duration
	announceCount    int
	hostname         string
	ifaceName        string
	staticAddrs      bool

	// m guards the lifecycle fields below.
	m        sync.Mutex
	commands chan command
	events   chan Event
	done     chan struct{}
	cancel   context.CancelFunc

	// services is owned by the run loop. v4/v6 are the cached local
	// addresses, filled at Start() unless set by UseAddresses().
	services map[string]*dnssd.Service
	v4       []dnswire.IPv4
	v6       []dnswire.IPv6
}

// New returns an advertiser that announces services via the given
// transport.
//
// IP family and interface selection for the sockets are configured on the
// transport.
func New(t mdns.Transport, options ...Option) (*Advertiser, error) {
	a := &Advertiser{
		transport:        t,
		ttl:              dnssd.DefaultTTL,
		announceInterval: DefaultAnnouncementInterval,
		announceCount:    DefaultAnnouncementCount,
	}

	for _, opt := range options {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	if a.logger == nil {
		a.logger = logging.DefaultLogger
	}
	if a.clock == nil {
		a.clock = clock.New()
	}

	return a, nil
}

// Start caches the local host name and addresses, starts the transport
// and begins answering queries. It is idempotent.
func (a *Advertiser) Start(ctx context.Context) error {
	a.m.Lock()
	defer a.m.Unlock()

	if a.commands != nil {
		return nil
	}

	if a.hostname == "" {
		h, err := mdns.LocalHostName()
		if err != nil {
			return err
		}
		a.hostname = h
	}

	if !a.staticAddrs {
		ifaces, err := mdns.MulticastInterfaces(a.ifaceName)
		if err != nil {
			return err
		}

		v4, v6, err := mdns.LocalAddresses(ifaces)
		if err != nil {
			return err
		}

		a.v4, a.v6 = v4, v6
	}

	if err := a.transport.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	commands := make(chan command)
	events := make(chan Event, 16)
	done := make(chan struct{})

	a.commands = commands
	a.events = events
	a.done = done
	a.cancel = cancel
	a.services = map[string]*dnssd.Service{}

	g, runCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return a.run(runCtx, commands)
	})
	g.Go(func() error {
		return a.periodicRefresh(runCtx, commands)
	})

	go func() {
		_ = g.Wait()
		close(events)
		close(done)
	}()

	return nil
}

// Stop sends a goodbye for every registered service, cancels the
// advertiser's tasks, stops the transport and closes the event stream.
// It is idempotent.
//
// The goodbyes are best-effort; send failures are logged and otherwise
// ignored.
func (a *Advertiser) Stop() error {
	a.m.Lock()

	if a.commands == nil {
		a.m.Unlock()
		return nil
	}

	commands := a.commands
	cancel := a.cancel
	done := a.done

	a.commands = nil
	a.cancel = nil
	a.done = nil

	a.m.Unlock()

	// Goodbyes must be sent before the tasks are cancelled; the command
	// runs inside the actor so the service table is read safely.
	c := &goodbyeAll{done: make(chan struct{})}
	select {
	case commands <- c:
		<-c.done
	case <-done:
	}

	cancel()
	<-done

	return a.transport.Stop()
}

// Events returns the advertiser's event stream.
//
// The channel is closed when the advertiser is stopped; a subsequent
// Start() creates a fresh stream.
func (a *Advertiser) Events() <-chan Event {
	a.m.Lock()
	defer a.m.Unlock()

	return a.events
}

// Register registers a service instance and announces it.
//
// The service must specify a port. If the host name or addresses are
// empty they are filled in from the advertiser's cached local values. The
// record bundle is announced immediately, then re-sent with exponentially
// increasing gaps of 1s, 2s, 4s, and so on, until the configured
// announcement count is reached.
func (a *Advertiser) Register(ctx context.Context, service *dnssd.Service) error {
	return a.executeErr(ctx, func(result chan error) command {
		return &register{service, result}
	})
}

// Unregister removes a registered service and sends its goodbye.
func (a *Advertiser) Unregister(ctx context.Context, service *dnssd.Service) error {
	return a.executeErr(ctx, func(result chan error) command {
		return &unregister{service, result}
	})
}

// Update replaces a registered service and re-announces it.
//
// It returns ErrServiceNotFound if no service with the same full name is
// registered.
func (a *Advertiser) Update(ctx context.Context, service *dnssd.Service) error {
	return a.executeErr(ctx, func(result chan error) command {
		return &update{service, result}
	})
}

// executeErr enqueues an error-returning command and awaits its result.
func (a *Advertiser) executeErr(
	ctx context.Context,
	build func(chan error) command,
) error {
	result := make(chan error, 1)

	if err := a.enqueue(ctx, build(result)); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue submits a command to the run loop.
func (a *Advertiser) enqueue(ctx context.Context, c command) error {
	a.m.Lock()
	commands := a.commands
	done := a.done
	a.m.Unlock()

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

// run is the advertiser's main loop. It owns the service table.
func (a *Advertiser) run(ctx context.Context, commands <-chan command) error {
	incoming := a.transport.Incoming()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case in, ok := <-incoming:
			if !ok {
				return nil
			}
			a.handle(ctx, in)

		case c := <-commands:
			c.execute(ctx, a)
		}
	}
}

// periodicRefresh re-announces every registered service at the configured
// interval. It terminates only on cancellation.
func (a *Advertiser) periodicRefresh(
	ctx context.Context,
	commands chan<- command,
) error {
	for {
		if err := mdns.Sleep(ctx, a.clock, a.announceInterval); err != nil {
			return err
		}

		select {
		case commands <- refreshAll{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// announceBackoff enqueues the remaining initial announcements for a
// newly registered service, sleeping 2^(i-1) seconds before announcement
// i+1, that is 1s, 2s, 4s, and so on.
func (a *Advertiser) announceBackoff(
	ctx context.Context,
	commands chan<- command,
	key string,
) {
	for i := 1; i < a.announceCount; i++ {
		d := time.Duration(1<<(i-1)) * time.Second

		if err := mdns.Sleep(ctx, a.clock, d); err != nil {
			return
		}

		select {
		case commands <- &announce{key}:
		case <-ctx.Done():
			return
		}
	}
}

func (a *Advertiser) doRegister(ctx context.Context, service *dnssd.Service) error {
	if service.Port == 0 {
		return ErrMissingPort
	}

	svc := service.Clone()

	if svc.Domain == "" {
		svc.Domain = dnssd.DefaultDomain
	}
	if svc.TTL == 0 {
		svc.TTL = a.ttl
	}
	if svc.Host == "" {
		svc.Host = a.hostname + "." + dnssd.DefaultDomain
	}
	if !svc.HasAddresses() {
		svc.IPv4s = append([]dnswire.IPv4(nil), a.v4...)
		svc.IPv6s = append([]dnswire.IPv6(nil), a.v6...)
	}
	svc.LastSeen = a.clock.Now()

	// Building the records up front surfaces invalid names before the
	// service is added to the table.
	if _, err := svc.Records(); err != nil {
		return err
	}

	key := asciiFold(svc.FullName())
	a.services[key] = svc

	a.emit(ctx, Registered{svc.Clone()})
	a.doAnnounce(ctx, key)

	a.m.Lock()
	commands := a.commands
	a.m.Unlock()

	if commands != nil && a.announceCount > 1 {
		go a.announceBackoff(ctx, commands, key)
	}

	return nil
}

func (a *Advertiser) doUnregister(ctx context.Context, service *dnssd.Service) error {
	key := asciiFold(service.FullName())

	svc, ok := a.services[key]
	if !ok {
		return ErrServiceNotFound
	}

	delete(a.services, key)
	a.sendGoodbye(ctx, svc)
	a.emit(ctx, Unregistered{svc.Clone()})

	return nil
}

func (a *Advertiser) doUpdate(ctx context.Context, service *dnssd.Service) error {
	key := asciiFold(service.FullName())

	if _, ok := a.services[key]; !ok {
		return ErrServiceNotFound
	}

	svc := service.Clone()
	if svc.TTL == 0 {
		svc.TTL = a.ttl
	}
	if svc.Host == "" {
		svc.Host = a.hostname + "." + dnssd.DefaultDomain
	}
	if !svc.HasAddresses() {
		svc.IPv4s = append([]dnswire.IPv4(nil), a.v4...)
		svc.IPv6s = append([]dnswire.IPv6(nil), a.v6...)
	}
	svc.LastSeen = a.clock.Now()

	a.services[key] = svc

	a.emit(ctx, Updated{svc.Clone()})
	a.doAnnounce(ctx, key)

	a.m.Lock()
	commands := a.commands
	a.m.Unlock()

	if commands != nil && a.announceCount > 1 {
		go a.announceBackoff(ctx, commands, key)
	}

	return nil
}

// doAnnounce sends one record-bundle announcement for a registered
// service: its PTR, SRV, TXT and address records, as answers of a single
// unsolicited response.
func (a *Advertiser) doAnnounce(ctx context.Context, key string) {
	svc, ok := a.services[key]
	if !ok {
		// The service was unregistered between announcements.
		return
	}

	records, err := svc.Records()
	if err != nil {
		logging.Log(a.logger, "unable to build records for '%s': %s", svc.FullName(), err)
		return
	}

	if err := a.transport.Send(ctx, mdns.NewResponse(records, nil)); err != nil {
		logging.Log(a.logger, "unable to announce '%s': %s", svc.FullName(), err)
		a.emit(ctx, Error{err})
	}
}

// sendGoodbye announces the withdrawal of a service's records.
// Failures are logged and otherwise ignored.
func (a *Advertiser) sendGoodbye(ctx context.Context, svc *dnssd.Service) {
	records, err := svc.Records()
	if err != nil {
		logging.Log(a.logger, "unable to build records for '%s': %s", svc.FullName(), err)
		return
	}

	if err := a.transport.Send(ctx, mdns.NewGoodbye(records)); err != nil {
		logging.Debug(a.logger, "unable to send goodbye for '%s': %s", svc.FullName(), err)
	}
}

// handle answers a single received query.
//
// For each question, matching records are assembled per DNS-SD: a PTR
// question for a registered type is answered with the PTR record and the
// instance's SRV, TXT and address records as additionals; questions on the
// instance or host name contribute the corresponding records to the
// additional section.
//
// See https://tools.ietf.org/html/rfc6763#section-12.
func (a *Advertiser) handle(ctx context.Context, in mdns.Inbound) {
	m := in.Message

	if m.Response {
		return
	}

	if err := mdns.ValidateQuery(m); err != nil {
		logging.Debug(a.logger, "ignoring mDNS query: %s", err)
		return
	}

	var answers, additional []dnswire.ResourceRecord

	for _, q := range m.Questions {
		qkey := q.Name.Key()

		for _, svc := range a.services {
			answers, additional = a.answerQuestion(q, qkey, svc, answers, additional)
		}
	}

	if len(answers) == 0 && len(additional) == 0 {
		return
	}

	res := mdns.NewResponse(answers, additional)

	var err error
	if mdns.IsLegacySource(in.Source) {
		// Legacy resolvers expect a standard unicast response, per
		// https://tools.ietf.org/html/rfc6762#section-6.7.
		res.ID = m.ID
		err = a.transport.SendTo(ctx, res, in.Source)
	} else {
		err = a.transport.Send(ctx, res)
	}

	if err != nil {
		logging.Log(a.logger, "unable to send mDNS response: %s", err)
		a.emit(ctx, Error{err})
	}
}

// answerQuestion appends the records a single service contributes to the
// answer for a single question.
func (a *Advertiser) answerQuestion(
	q dnswire.Question,
	qkey string,
	svc *dnssd.Service,
	answers, additional []dnswire.ResourceRecord,
) ([]dnswire.ResourceRecord, []dnswire.ResourceRecord) {
	isAny := q.Type == dnswire.TypeANY

	if (q.Type == dnswire.TypePTR || isAny) && qkey == asciiFold(svc.FullType()) {
		ptr, err := svc.PTR()
		if err != nil {
			logging.Log(a.logger, "unable to build records for '%s': %s", svc.FullName(), err)
			return answers, additional
		}

		answers = append(answers, ptr)
		additional = a.appendInstanceRecords(svc, additional)

		return answers, additional
	}

	if (q.Type == dnswire.TypeSRV || q.Type == dnswire.TypeTXT || isAny) &&
		qkey == asciiFold(svc.FullName()) {
		additional = a.appendInstanceRecords(svc, additional)

		return answers, additional
	}

	if (q.Type == dnswire.TypeA || q.Type == dnswire.TypeAAAA || isAny) &&
		qkey == asciiFold(svc.Host)+"." {
		addrs, err := svc.AddressRecords()
		if err != nil {
			logging.Log(a.logger, "unable to build records for '%s': %s", svc.FullName(), err)
			return answers, additional
		}

		additional = append(additional, addrs...)
	}

	return answers, additional
}

// appendInstanceRecords appends a service's SRV, TXT and address records
// to records.
func (a *Advertiser) appendInstanceRecords(
	svc *dnssd.Service,
	records []dnswire.ResourceRecord,
) []dnswire.ResourceRecord {
	srv, err := svc.SRV()
	if err != nil {
		logging.Log(a.logger, "unable to build records for '%s': %s", svc.FullName(), err)
		return records
	}

	txt, err := svc.TXT()
	if err != nil {
		logging.Log(a.logger, "unable to build records for '%s': %s", svc.FullName(), err)
		return records
	}

	addrs, err := svc.AddressRecords()
	if err != nil {
		logging.Log(a.logger, "unable to build records for '%s': %s", svc.FullName(), err)
		return records
	}

	records = append(records, srv, txt)
	records = append(records, addrs...)

	return records
}

// emit delivers an event to the stream, abandoning it if the advertiser
// is stopped before the consumer accepts it.
func (a *Advertiser) emit(ctx context.Context, e Event) {
	select {
	case a.events <- e:
	case <-ctx.Done():
	}
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
