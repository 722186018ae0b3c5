package browser_test

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
	"github.com/jmalloc/diffuse/src/diffuse/mdns"
	. "github.com/jmalloc/diffuse/src/diffuse/mdns/browser"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// name is a test helper that parses a name that is known to be valid.
func name(s string) dnswire.Name {
	n, err := dnswire.ParseName(s)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return n
}

var _ = Describe("Browser", func() {
	var (
		ctx       context.Context
		tr        *transportStub
		clk       *clock.Mock
		b         *Browser
		events    <-chan Event
		instance  dnswire.Name
		hostName  dnswire.Name
		ptrRecord dnswire.ResourceRecord
	)

	BeforeEach(func() {
		ctx = context.Background()
		tr = newTransportStub()
		clk = clock.NewMock()

		var err error
		b, err = New(tr, UseClock(clk))
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Start(ctx)).To(Succeed())
		events = b.Events()

		var perr error
		instance, perr = name("_http._tcp.local.").Prepend("My Server")
		Expect(perr).NotTo(HaveOccurred())

		hostName = name("myhost.local.")

		ptrRecord = dnswire.ResourceRecord{
			Name:  name("_http._tcp.local."),
			Class: dnswire.ClassIN,
			TTL:   120,
			Data:  dnswire.PTR{Target: instance},
		}
	})

	AfterEach(func() {
		b.Stop()
	})

	Describe("Browse", func() {
		It("sends an immediate PTR query", func() {
			Expect(b.Browse(ctx, "_http._tcp.local.")).To(Succeed())
			Expect(tr.sentCount()).To(Equal(1))

			q := tr.sentMessage(0)
			Expect(q.Response).To(BeFalse())
			Expect(q.Questions).To(HaveLen(1))
			Expect(q.Questions[0].Type).To(Equal(dnswire.TypePTR))
			Expect(q.Questions[0].Name.String()).To(Equal("_http._tcp.local."))
			Expect(q.Questions[0].UnicastResponse).To(BeFalse())
		})

		It("fails when the browser is not started", func() {
			stopped, err := New(newTransportStub())
			Expect(err).NotTo(HaveOccurred())

			Expect(stopped.Browse(ctx, "_http._tcp.local.")).To(
				MatchError(ErrNotStarted),
			)
		})
	})

	Describe("discovery flow", func() {
		BeforeEach(func() {
			Expect(b.Browse(ctx, "_http._tcp.local.")).To(Succeed())
		})

		It("walks a service through found, resolved and removed", func() {
			By("emitting ServiceFound for a new PTR answer")

			tr.deliver(mdns.NewResponse(
				[]dnswire.ResourceRecord{ptrRecord},
				nil,
			), nil)

			var e Event
			Eventually(events).Should(Receive(&e))

			found, ok := e.(ServiceFound)
			Expect(ok).To(BeTrue())
			Expect(found.Service.Name).To(Equal("My Server"))
			Expect(found.Service.Type).To(Equal("_http._tcp"))
			Expect(found.Service.Domain).To(Equal("local"))
			Expect(found.Service.IsResolved()).To(BeFalse())

			By("auto-resolving with a QU query for SRV and TXT")

			Eventually(tr.sentCount).Should(Equal(2))
			q := tr.lastSent()
			Expect(q.Questions).To(HaveLen(2))
			Expect(q.Questions[0].Type).To(Equal(dnswire.TypeSRV))
			Expect(q.Questions[1].Type).To(Equal(dnswire.TypeTXT))
			Expect(q.Questions[0].UnicastResponse).To(BeTrue())

			By("applying SRV and TXT answers in record order")

			tr.deliver(mdns.NewResponse(
				[]dnswire.ResourceRecord{
					{
						Name:       instance,
						Class:      dnswire.ClassIN,
						CacheFlush: true,
						TTL:        120,
						Data: dnswire.SRV{
							Port:   8080,
							Target: hostName,
						},
					},
					{
						Name:       instance,
						Class:      dnswire.ClassIN,
						CacheFlush: true,
						TTL:        120,
						Data:       dnswire.TXT{Strings: []string{"path=/v1"}},
					},
				},
				nil,
			), nil)

			Eventually(events).Should(Receive(&e))
			updated, ok := e.(ServiceUpdated)
			Expect(ok).To(BeTrue())
			Expect(updated.Service.Host).To(Equal("myhost.local"))
			Expect(updated.Service.Port).To(Equal(uint16(8080)))
			Expect(updated.Service.IsResolved()).To(BeTrue())

			Eventually(events).Should(Receive(&e))
			updated, ok = e.(ServiceUpdated)
			Expect(ok).To(BeTrue())

			v, _ := updated.Service.Text.Get("path")
			Expect(v).To(Equal("/v1"))

			By("appending addresses from A answers")

			tr.deliver(mdns.NewResponse(
				[]dnswire.ResourceRecord{
					{
						Name:       hostName,
						Class:      dnswire.ClassIN,
						CacheFlush: true,
						TTL:        120,
						Data:       dnswire.A{Address: dnswire.IPv4{192, 168, 1, 100}},
					},
				},
				nil,
			), nil)

			Eventually(events).Should(Receive(&e))
			updated, ok = e.(ServiceUpdated)
			Expect(ok).To(BeTrue())
			Expect(updated.Service.IPv4s).To(Equal(
				[]dnswire.IPv4{{192, 168, 1, 100}},
			))

			By("emitting ServiceRemoved on a goodbye")

			goodbye := ptrRecord
			goodbye.TTL = 0

			tr.deliver(mdns.NewResponse(
				[]dnswire.ResourceRecord{goodbye},
				nil,
			), nil)

			Eventually(events).Should(Receive(&e))
			removed, ok := e.(ServiceRemoved)
			Expect(ok).To(BeTrue())
			Expect(removed.Service.FullName()).To(Equal(
				"My Server._http._tcp.local.",
			))
		})

		It("does not duplicate an already-known address", func() {
			tr.deliver(mdns.NewResponse(
				[]dnswire.ResourceRecord{ptrRecord},
				nil,
			), nil)

			var e Event
			Eventually(events).Should(Receive(&e)) // found

			tr.deliver(mdns.NewResponse(
				[]dnswire.ResourceRecord{
					{
						Name:  instance,
						Class: dnswire.ClassIN,
						TTL:   120,
						Data:  dnswire.SRV{Port: 8080, Target: hostName},
					},
				},
				nil,
			), nil)
			Eventually(events).Should(Receive(&e)) // updated (srv)

			addr := mdns.NewResponse(
				[]dnswire.ResourceRecord{
					{
						Name:  hostName,
						Class: dnswire.ClassIN,
						TTL:   120,
						Data:  dnswire.A{Address: dnswire.IPv4{10, 0, 0, 1}},
					},
				},
				nil,
			)

			tr.deliver(addr, nil)
			Eventually(events).Should(Receive(&e)) // updated (address)

			tr.deliver(addr, nil)
			Consistently(events).ShouldNot(Receive())
		})

		It("ignores PTR answers for types that are not browsed", func() {
			other := dnswire.ResourceRecord{
				Name:  name("_ipp._tcp.local."),
				Class: dnswire.ClassIN,
				TTL:   120,
				Data:  dnswire.PTR{Target: instance},
			}

			tr.deliver(mdns.NewResponse(
				[]dnswire.ResourceRecord{other},
				nil,
			), nil)

			Consistently(events).ShouldNot(Receive())
		})

		It("ignores queries", func() {
			tr.deliver(mdns.NewQuery(name("_http._tcp.local.")), nil)
			Consistently(events).ShouldNot(Receive())
		})
	})

	Describe("StopBrowsing", func() {
		It("removes the type's known services", func() {
			Expect(b.Browse(ctx, "_http._tcp.local.")).To(Succeed())

			tr.deliver(mdns.NewResponse(
				[]dnswire.ResourceRecord{ptrRecord},
				nil,
			), nil)

			var e Event
			Eventually(events).Should(Receive(&e)) // found

			Expect(b.StopBrowsing(ctx, "_http._tcp.local.")).To(Succeed())

			Eventually(events).Should(Receive(&e))
			removed, ok := e.(ServiceRemoved)
			Expect(ok).To(BeTrue())
			Expect(removed.Service.Name).To(Equal("My Server"))

			services, err := b.Services(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(services).To(BeEmpty())
		})
	})

	Describe("periodic queries", func() {
		It("re-queries each browsed type at the configured interval", func() {
			Expect(b.Browse(ctx, "_http._tcp.local.")).To(Succeed())
			Expect(tr.sentCount()).To(Equal(1))

			// Allow the periodic task to arm its timer before advancing
			// the mock clock.
			time.Sleep(20 * time.Millisecond)
			clk.Add(DefaultQueryInterval)

			Eventually(tr.sentCount).Should(Equal(2))

			q := tr.lastSent()
			Expect(q.Questions[0].Type).To(Equal(dnswire.TypePTR))
		})
	})

	Describe("Stop", func() {
		It("closes the event stream", func() {
			Expect(b.Stop()).To(Succeed())
			Eventually(events).Should(BeClosed())
		})

		It("is idempotent", func() {
			Expect(b.Stop()).To(Succeed())
			Expect(b.Stop()).To(Succeed())
		})
	})
})
