package browser

import (
	"context"

	"github.com/jmalloc/diffuse/src/diffuse/dnssd"
)

// command is a unit-of-work performed within the browser's main loop.
//
// All public operations that touch browsing state are funneled through the
// command channel, so that state transitions are serialized with incoming
// responses and periodic queries.
type command interface {
	execute(ctx context.Context, b *Browser)
}

// browse adds a service type to the browsing set and sends an immediate
// PTR query for it.
type browse struct {
	serviceType string
	result      chan error
}

func (c *browse) execute(ctx context.Context, b *Browser) {
	c.result <- b.doBrowse(ctx, c.serviceType)
}

// stopBrowsing removes a service type from the browsing set, dropping its
// known instances.
type stopBrowsing struct {
	serviceType string
	result      chan error
}

func (c *stopBrowsing) execute(ctx context.Context, b *Browser) {
	c.result <- b.doStopBrowsing(ctx, c.serviceType)
}

// resolve queries for a service's SRV and TXT records and reports its
// current state.
type resolve struct {
	service *dnssd.Service
	result  chan resolveResult
}

type resolveResult struct {
	service *dnssd.Service
	err     error
}

func (c *resolve) execute(ctx context.Context, b *Browser) {
	svc, err := b.doResolve(ctx, c.service)
	c.result <- resolveResult{svc, err}
}

// listServices reports a snapshot of the known services.
type listServices struct {
	result chan []*dnssd.Service
}

func (c *listServices) execute(ctx context.Context, b *Browser) {
	services := make([]*dnssd.Service, 0, len(b.services))
	for _, s := range b.services {
		services = append(services, s.Clone())
	}

	c.result <- services
}
