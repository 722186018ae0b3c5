package dnswire

import "fmt"

// ResourceRecord is a single DNS resource record.
//
// The record's type is carried by its rdata; see Type().
type ResourceRecord struct {
	Name Name

	// Class is the record class, without the mDNS cache-flush bit.
	Class Class

	// CacheFlush is the mDNS cache-flush bit: true if neighboring hosts
	// should discard previously cached records of the same name, type and
	// class.
	//
	// See https://tools.ietf.org/html/rfc6762#section-10.2.
	CacheFlush bool

	// TTL is the record's time-to-live, in seconds. A TTL of zero signals
	// withdrawal ("goodbye") in mDNS.
	TTL uint32

	Data RData
}

// Type returns the record's type code.
func (r ResourceRecord) Type() Type {
	return r.Data.rdataType()
}

// encode appends the record's wire representation to b.
//
// RDLENGTH is written as a placeholder and backpatched once the rdata has
// been encoded, so that compression pointers inside the rdata remain
// relative to the start of the message.
func (r ResourceRecord) encode(b *Buffer) {
	b.WriteName(r.Name)
	b.WriteU16(uint16(r.Type()))

	cls := uint16(r.Class)
	if r.CacheFlush {
		cls |= CacheFlushBit
	}
	b.WriteU16(cls)

	b.WriteU32(r.TTL)

	lenPos := b.Len()
	b.WriteU16(0)
	r.Data.encodeRData(b)
	b.patchU16(lenPos, uint16(b.Len()-lenPos-2))
}

// decodeResourceRecord decodes the record starting at offset within msg,
// returning the record and the number of octets it occupies.
func decodeResourceRecord(msg []byte, offset int) (ResourceRecord, int, error) {
	name, n, err := DecodeName(msg, offset)
	if err != nil {
		return ResourceRecord{}, 0, err
	}

	pos := offset + n
	if pos+10 > len(msg) {
		return ResourceRecord{}, 0, fmt.Errorf(
			"%w: truncated resource record",
			ErrInvalidMessage,
		)
	}

	t := Type(uint16(msg[pos])<<8 | uint16(msg[pos+1]))
	cls := uint16(msg[pos+2])<<8 | uint16(msg[pos+3])
	ttl := uint32(msg[pos+4])<<24 |
		uint32(msg[pos+5])<<16 |
		uint32(msg[pos+6])<<8 |
		uint32(msg[pos+7])
	rdlen := int(uint16(msg[pos+8])<<8 | uint16(msg[pos+9]))
	pos += 10

	if pos+rdlen > len(msg) {
		return ResourceRecord{}, 0, fmt.Errorf(
			"%w: rdata length %d exceeds remaining buffer",
			ErrInvalidMessage,
			rdlen,
		)
	}

	data, err := decodeRData(t, msg, pos, rdlen)
	if err != nil {
		return ResourceRecord{}, 0, err
	}

	return ResourceRecord{
		Name:       name,
		Class:      Class(cls &^ CacheFlushBit),
		CacheFlush: cls&CacheFlushBit != 0,
		TTL:        ttl,
		Data:       data,
	}, pos + rdlen - offset, nil
}
