package advertiser

import (
	"context"

	"github.com/jmalloc/diffuse/src/diffuse/dnssd"
)

// command is a unit-of-work performed within the advertiser's main loop.
//
// All public operations that touch the service table are funneled through
// the command channel, so that state transitions are serialized with
// incoming queries and announcements.
type command interface {
	execute(ctx context.Context, a *Advertiser)
}

// register inserts a service into the table and starts its initial
// announcement sequence.
type register struct {
	service *dnssd.Service
	result  chan error
}

func (c *register) execute(ctx context.Context, a *Advertiser) {
	c.result <- a.doRegister(ctx, c.service)
}

// unregister removes a service from the table and sends its goodbye.
type unregister struct {
	service *dnssd.Service
	result  chan error
}

func (c *unregister) execute(ctx context.Context, a *Advertiser) {
	c.result <- a.doUnregister(ctx, c.service)
}

// update replaces a registered service and re-announces it.
type update struct {
	service *dnssd.Service
	result  chan error
}

func (c *update) execute(ctx context.Context, a *Advertiser) {
	c.result <- a.doUpdate(ctx, c.service)
}

// announce sends a single record-bundle announcement for a registered
// service. It is enqueued by the backoff task between the initial
// announcements.
type announce struct {
	key string
}

func (c *announce) execute(ctx context.Context, a *Advertiser) {
	a.doAnnounce(ctx, c.key)
}

// refreshAll re-announces every registered service. It is enqueued by the
// periodic refresh task.
type refreshAll struct{}

func (refreshAll) execute(ctx context.Context, a *Advertiser) {
	for key := range a.services {
		a.doAnnounce(ctx, key)
	}
}

// goodbyeAll sends a goodbye for every registered service. It is enqueued
// by Stop() before the advertiser's tasks are cancelled.
type goodbyeAll struct {
	done chan struct{}
}

func (c *goodbyeAll) execute(ctx context.Context, a *Advertiser) {
	for _, svc := range a.services {
		a.sendGoodbye(ctx, svc)
	}

	close(c.done)
}
