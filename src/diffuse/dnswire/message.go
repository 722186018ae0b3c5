package dnswire

import "fmt"

// Header is the fixed 12-octet DNS message header.
//
// See https://tools.ietf.org/html/rfc1035#section-4.1.1.
type Header struct {
	ID uint16

	Response           bool
	Opcode             Opcode
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool

	// Zero carries the three reserved header bits. They must be zero on
	// transmission but are preserved on decode.
	Zero uint8

	Rcode Rcode
}

// Message is a complete DNS message.
type Message struct {
	Header

	Questions  []Question
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
}

// IsMDNS returns true if this message is a multicast DNS message.
//
// mDNS messages carry a zero query identifier, per
// https://tools.ietf.org/html/rfc6762#section-18.1. Messages with a
// non-zero identifier still decode normally; they are simply not treated
// as mDNS.
func (m *Message) IsMDNS() bool {
	return m.ID == 0
}

// Encode returns the message's wire representation.
//
// Encoding is total for messages built from validated names; it never
// fails.
func (m *Message) Encode() []byte {
	var b Buffer
	m.EncodeTo(&b)

	out := make([]byte, b.Len())
	copy(out, b.Bytes())

	return out
}

// EncodeTo appends the message's wire representation to b.
func (m *Message) EncodeTo(b *Buffer) {
	b.WriteU16(m.ID)
	b.WriteU16(m.packFlags())
	b.WriteU16(uint16(len(m.Questions)))
	b.WriteU16(uint16(len(m.Answers)))
	b.WriteU16(uint16(len(m.Authority)))
	b.WriteU16(uint16(len(m.Additional)))

	for _, q := range m.Questions {
		q.encode(b)
	}
	for _, r := range m.Answers {
		r.encode(b)
	}
	for _, r := range m.Authority {
		r.encode(b)
	}
	for _, r := range m.Additional {
		r.encode(b)
	}
}

// packFlags packs the header flags into the second 16-bit word of the
// header.
func (m *Message) packFlags() uint16 {
	var f uint16

	if m.Response {
		f |= 1 << 15
	}
	f |= uint16(m.Opcode&0xF) << 11
	if m.Authoritative {
		f |= 1 << 10
	}
	if m.Truncated {
		f |= 1 << 9
	}
	if m.RecursionDesired {
		f |= 1 << 8
	}
	if m.RecursionAvailable {
		f |= 1 << 7
	}
	f |= uint16(m.Zero&0x7) << 4
	f |= uint16(m.Rcode & 0xF)

	return f
}

// unpackFlags fills the header flags from the second 16-bit word of the
// header.
func (m *Message) unpackFlags(f uint16) {
	m.Response = f&(1<<15) != 0
	m.Opcode = Opcode(f >> 11 & 0xF)
	m.Authoritative = f&(1<<10) != 0
	m.Truncated = f&(1<<9) != 0
	m.RecursionDesired = f&(1<<8) != 0
	m.RecursionAvailable = f&(1<<7) != 0
	m.Zero = uint8(f >> 4 & 0x7)
	m.Rcode = Rcode(f & 0xF)
}

// Decode decodes a DNS message from its wire representation.
//
// Decoding never retains data; embedded names and rdata are copied out of
// the input buffer.
func Decode(data []byte) (*Message, error) {
	if len(data) < headerLength {
		return nil, fmt.Errorf(
			"%w: %d octets is too short for a message header",
			ErrInvalidMessage,
			len(data),
		)
	}

	m := &Message{}
	m.ID = uint16(data[0])<<8 | uint16(data[1])
	m.unpackFlags(uint16(data[2])<<8 | uint16(data[3]))

	qd := int(uint16(data[4])<<8 | uint16(data[5]))
	an := int(uint16(data[6])<<8 | uint16(data[7]))
	ns := int(uint16(data[8])<<8 | uint16(data[9]))
	ar := int(uint16(data[10])<<8 | uint16(data[11]))

	pos := headerLength

	for i := 0; i < qd; i++ {
		q, n, err := decodeQuestion(data, pos)
		if err != nil {
			return nil, err
		}

		m.Questions = append(m.Questions, q)
		pos += n
	}

	sections := []struct {
		count   int
		records *[]ResourceRecord
	}{
		{an, &m.Answers},
		{ns, &m.Authority},
		{ar, &m.Additional},
	}

	for _, s := range sections {
		for i := 0; i < s.count; i++ {
			r, n, err := decodeResourceRecord(data, pos)
			if err != nil {
				return nil, err
			}

			*s.records = append(*s.records, r)
			pos += n
		}
	}

	return m, nil
}
