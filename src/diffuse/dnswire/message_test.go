package dnswire_test

import (
	. "github.com/jmalloc/diffuse/src/diffuse/dnswire"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// name is a test helper that parses a name that is known to be valid.
func name(s string) Name {
	n, err := ParseName(s)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return n
}

// ptrQueryWire is the wire representation of a PTR query for
// "_http._tcp.local.": id 0, no flags, one question of class IN.
var ptrQueryWire = []byte{
	0x00, 0x00, // id
	0x00, 0x00, // flags
	0x00, 0x01, // QDCOUNT
	0x00, 0x00, // ANCOUNT
	0x00, 0x00, // NSCOUNT
	0x00, 0x00, // ARCOUNT
	0x05, 0x5f, 0x68, 0x74, 0x74, 0x70, // "_http"
	0x04, 0x5f, 0x74, 0x63, 0x70, // "_tcp"
	0x05, 0x6c, 0x6f, 0x63, 0x61, 0x6c, // "local"
	0x00,       // root
	0x00, 0x0c, // type PTR
	0x00, 0x01, // class IN
}

var _ = Describe("Message", func() {
	Describe("Decode", func() {
		It("decodes a PTR query", func() {
			m, err := Decode(ptrQueryWire)
			Expect(err).NotTo(HaveOccurred())

			Expect(m.ID).To(Equal(uint16(0)))
			Expect(m.Response).To(BeFalse())
			Expect(m.Opcode).To(Equal(OpcodeQuery))
			Expect(m.IsMDNS()).To(BeTrue())

			Expect(m.Questions).To(HaveLen(1))
			q := m.Questions[0]
			Expect(q.Name.String()).To(Equal("_http._tcp.local."))
			Expect(q.Type).To(Equal(TypePTR))
			Expect(q.Class).To(Equal(ClassIN))
			Expect(q.UnicastResponse).To(BeFalse())
		})

		It("decodes a response with a compressed PTR answer", func() {
			data := []byte{
				0x00, 0x00, // id
				0x84, 0x00, // flags: response, authoritative
				0x00, 0x00, // QDCOUNT
				0x00, 0x01, // ANCOUNT
				0x00, 0x00, // NSCOUNT
				0x00, 0x00, // ARCOUNT
				// offset 12: "_http._tcp.local."
				0x05, '_', 'h', 't', 't', 'p',
				0x04, '_', 't', 'c', 'p',
				0x05, 'l', 'o', 'c', 'a', 'l',
				0x00,
				0x00, 0x0c, // type PTR
				0x00, 0x01, // class IN
				0x00, 0x00, 0x00, 0x78, // ttl 120
				0x00, 0x0c, // rdlength 12
				// rdata: "My Server" + pointer to offset 12
				0x09, 'M', 'y', ' ', 'S', 'e', 'r', 'v', 'e', 'r',
				0xC0, 0x0C,
			}

			m, err := Decode(data)
			Expect(err).NotTo(HaveOccurred())

			Expect(m.Response).To(BeTrue())
			Expect(m.Authoritative).To(BeTrue())
			Expect(m.Answers).To(HaveLen(1))

			ptr, ok := m.Answers[0].Data.(PTR)
			Expect(ok).To(BeTrue())
			Expect(ptr.Target.Labels()).To(Equal(
				[]string{"My Server", "_http", "_tcp", "local"},
			))
		})

		It("decodes messages with a non-zero id, but they are not mDNS", func() {
			data := append([]byte(nil), ptrQueryWire...)
			data[0] = 0x12
			data[1] = 0x34

			m, err := Decode(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.ID).To(Equal(uint16(0x1234)))
			Expect(m.IsMDNS()).To(BeFalse())
		})

		It("decodes empty TXT rdata to a single empty string", func() {
			data := []byte{
				0x00, 0x00,
				0x84, 0x00,
				0x00, 0x00,
				0x00, 0x01,
				0x00, 0x00,
				0x00, 0x00,
				0x01, 'a', 0x00, // "a."
				0x00, 0x10, // type TXT
				0x00, 0x01, // class IN
				0x00, 0x00, 0x00, 0x78,
				0x00, 0x00, // rdlength 0
			}

			m, err := Decode(data)
			Expect(err).NotTo(HaveOccurred())

			txt, ok := m.Answers[0].Data.(TXT)
			Expect(ok).To(BeTrue())
			Expect(txt.Strings).To(Equal([]string{""}))
		})

		It("fails on a message shorter than the header", func() {
			_, err := Decode([]byte{0x00, 0x00, 0x00})
			Expect(err).To(MatchError(ErrInvalidMessage))
		})

		It("fails when a section is shorter than its declared count", func() {
			data := []byte{
				0x00, 0x00,
				0x00, 0x00,
				0x00, 0x01, // QDCOUNT = 1, but no question follows
				0x00, 0x00,
				0x00, 0x00,
				0x00, 0x00,
			}

			_, err := Decode(data)
			Expect(err).To(MatchError(ErrInvalidMessage))
		})

		It("fails on a question with an unrecognized type code", func() {
			data := append([]byte(nil), ptrQueryWire...)
			data[31] = 0x63 // type 99

			_, err := Decode(data)
			Expect(err).To(MatchError(ErrUnsupportedType))
		})

		It("fails on an A record with the wrong rdata length", func() {
			data := []byte{
				0x00, 0x00,
				0x84, 0x00,
				0x00, 0x00,
				0x00, 0x01,
				0x00, 0x00,
				0x00, 0x00,
				0x01, 'a', 0x00,
				0x00, 0x01, // type A
				0x00, 0x01,
				0x00, 0x00, 0x00, 0x78,
				0x00, 0x03, // rdlength 3
				0x01, 0x02, 0x03,
			}

			_, err := Decode(data)
			Expect(err).To(MatchError(ErrInvalidMessage))
		})

		It("fails when rdlength exceeds the remaining buffer", func() {
			data := []byte{
				0x00, 0x00,
				0x84, 0x00,
				0x00, 0x00,
				0x00, 0x01,
				0x00, 0x00,
				0x00, 0x00,
				0x01, 'a', 0x00,
				0x00, 0x10,
				0x00, 0x01,
				0x00, 0x00, 0x00, 0x78,
				0x00, 0x10, // rdlength 16, but only 2 octets remain
				0x01, 0x02,
			}

			_, err := Decode(data)
			Expect(err).To(MatchError(ErrInvalidMessage))
		})
	})

	Describe("Encode", func() {
		It("produces the canonical PTR query bytes", func() {
			m := &Message{
				Questions: []Question{
					{
						Name:  name("_http._tcp.local."),
						Type:  TypePTR,
						Class: ClassIN,
					},
				},
			}

			Expect(m.Encode()).To(Equal(ptrQueryWire))
		})

		It("sets the QU bit on unicast-response questions", func() {
			m := &Message{
				Questions: []Question{
					{
						Name:            name("_http._tcp.local."),
						Type:            TypeSRV,
						Class:           ClassIN,
						UnicastResponse: true,
					},
				},
			}

			data := m.Encode()
			// The class is the final 16-bit word of the question.
			cls := uint16(data[len(data)-2])<<8 | uint16(data[len(data)-1])
			Expect(cls).To(Equal(uint16(ClassIN) | uint16(UnicastResponseBit)))
		})
	})

	Describe("round-trips", func() {
		It("round-trips a full DNS-SD response, compressed", func() {
			serviceType := name("_http._tcp.local.")
			instance, err := serviceType.Prepend("My Service")
			Expect(err).NotTo(HaveOccurred())
			host := name("myhost.local.")

			m := &Message{
				Header: Header{
					Response:      true,
					Authoritative: true,
				},
				Answers: []ResourceRecord{
					{
						Name:  serviceType,
						Class: ClassIN,
						TTL:   120,
						Data:  PTR{Target: instance},
					},
					{
						Name:       instance,
						Class:      ClassIN,
						CacheFlush: true,
						TTL:        120,
						Data: SRV{
							Port:   8080,
							Target: host,
						},
					},
					{
						Name:       instance,
						Class:      ClassIN,
						CacheFlush: true,
						TTL:        120,
						Data:       TXT{Strings: []string{"path=/v1"}},
					},
				},
				Additional: []ResourceRecord{
					{
						Name:       host,
						Class:      ClassIN,
						CacheFlush: true,
						TTL:        120,
						Data:       A{Address: IPv4{192, 168, 1, 100}},
					},
				},
			}

			data := m.Encode()
			Expect(len(data)).To(BeNumerically("<", 200))

			d, err := Decode(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(m))
		})

		It("round-trips every supported rdata variant", func() {
			n := name("myhost.local.")

			m := &Message{
				Answers: []ResourceRecord{
					{Name: n, Class: ClassIN, TTL: 120, Data: A{IPv4{192, 168, 1, 1}}},
					{Name: n, Class: ClassIN, TTL: 120, Data: AAAA{
						IPv6{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
					}},
					{Name: n, Class: ClassIN, TTL: 120, Data: PTR{Target: name("other.local.")}},
					{Name: n, Class: ClassIN, TTL: 120, Data: SRV{
						Priority: 10,
						Weight:   5,
						Port:     443,
						Target:   name("target.local."),
					}},
					{Name: n, Class: ClassIN, TTL: 120, Data: TXT{Strings: []string{"a=1", "b"}}},
					{Name: n, Class: ClassIN, TTL: 120, Data: HINFO{CPU: "ARM64", OS: "LINUX"}},
					{Name: n, Class: ClassIN, TTL: 120, Data: NSEC{
						Next:   n,
						Bitmap: []byte{0x00, 0x04, 0x40, 0x00, 0x00, 0x08},
					}},
				},
			}

			d, err := Decode(m.Encode())
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(m))
		})

		It("round-trips records of unrecognized types opaquely", func() {
			m := &Message{
				Answers: []ResourceRecord{
					{
						Name:  name("myhost.local."),
						Class: ClassIN,
						TTL:   120,
						Data: Unknown{
							Code: 999,
							Raw:  []byte{0xDE, 0xAD, 0xBE, 0xEF},
						},
					},
				},
			}

			d, err := Decode(m.Encode())
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(m))
		})

		It("compresses repeated suffixes across records", func() {
			suffix := name("_http._tcp.local.")

			var uncompressed int
			m := &Message{}

			for _, label := range []string{"alpha", "bravo", "charlie"} {
				instance, err := suffix.Prepend(label)
				Expect(err).NotTo(HaveOccurred())

				m.Answers = append(m.Answers, ResourceRecord{
					Name:  suffix,
					Class: ClassIN,
					TTL:   120,
					Data:  PTR{Target: instance},
				})

				// name + type + class + ttl + rdlength + uncompressed target
				uncompressed += suffix.EncodedLen() + 10 + instance.EncodedLen()
			}

			data := m.Encode()
			Expect(len(data)).To(BeNumerically("<", 12+uncompressed*2/3))

			d, err := Decode(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(m))
		})
	})
})
