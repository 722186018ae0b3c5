package dnswire

// Buffer is an append-oriented octet buffer used to encode DNS messages.
//
// All multi-octet integers are written in network (big-endian) byte order.
//
// The buffer carries the name-compression table for the message being
// encoded, mapping each previously written label suffix to the offset at
// which it was written. The table is scoped to a single Encode() call and
// is never shared between messages.
type Buffer struct {
	data    []byte
	offsets map[string]int
}

// WriteU8 appends a single octet to the buffer.
func (b *Buffer) WriteU8(v uint8) {
	b.data = append(b.data, v)
}

// WriteU16 appends a 16-bit big-endian integer to the buffer.
func (b *Buffer) WriteU16(v uint16) {
	b.data = append(b.data, byte(v>>8), byte(v))
}

// WriteU32 appends a 32-bit big-endian integer to the buffer.
func (b *Buffer) WriteU32(v uint32) {
	b.data = append(
		b.data,
		byte(v>>24),
		byte(v>>16),
		byte(v>>8),
		byte(v),
	)
}

// WriteBytes appends p to the buffer.
func (b *Buffer) WriteBytes(p []byte) {
	b.data = append(b.data, p...)
}

// Len returns the number of octets written so far.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the encoded octets.
//
// The returned slice aliases the buffer's storage and is invalidated by
// further writes or by Reset().
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Reset empties the buffer and the compression table, retaining the
// underlying storage for reuse.
func (b *Buffer) Reset() {
	b.data = b.data[:0]

	for k := range b.offsets {
		delete(b.offsets, k)
	}
}

// WriteName writes n using RFC 1035 §4.1.4 message compression.
//
// For each suffix of the remaining labels, longest first, the compression
// table is consulted. On a hit a two-octet pointer to the previous
// occurrence is written and encoding stops. On a miss the current offset
// is recorded for that suffix and the next label is written out.
//
// Looking up the full remaining suffix first amortizes the common case of
// repeated zone names; in a typical DNS-SD response every record name ends
// in the same "<service>.<domain>." tail.
func (b *Buffer) WriteName(n Name) {
	if b.offsets == nil {
		b.offsets = map[string]int{}
	}

	labels := n.labels

	for i := range labels {
		key := suffixKey(labels[i:])

		if off, ok := b.offsets[key]; ok {
			b.WriteU16(pointerFlag | uint16(off))
			return
		}

		// Offsets beyond the 14-bit pointer range can never be referenced,
		// so they are not recorded.
		if b.Len() < maxPointerOffset {
			b.offsets[key] = b.Len()
		}

		b.WriteU8(uint8(len(labels[i])))
		b.WriteBytes([]byte(labels[i]))
	}

	b.WriteU8(0)
}

// WriteNameUncompressed writes n without consulting or extending the
// compression table.
//
// RFC 2782 requires that the target of an SRV record not be compressed,
// reiterated for mDNS by https://tools.ietf.org/html/rfc6762#section-18.14.
func (b *Buffer) WriteNameUncompressed(n Name) {
	for _, l := range n.labels {
		b.WriteU8(uint8(len(l)))
		b.WriteBytes([]byte(l))
	}

	b.WriteU8(0)
}

// patchU16 overwrites a previously written 16-bit integer at pos.
//
// It is used to backpatch RDLENGTH after the rdata has been encoded, which
// keeps compression pointers inside the rdata relative to the start of the
// message.
func (b *Buffer) patchU16(pos int, v uint16) {
	b.data[pos] = byte(v >> 8)
	b.data[pos+1] = byte(v)
}

// pointerFlag is the 2-bit marker identifying a compression pointer.
const pointerFlag = 0xC000

// suffixKey returns the compression-table key for a label suffix.
//
// Labels are joined with a NUL separator rather than a dot; DNS-SD instance
// labels may themselves contain dots.
func suffixKey(labels []string) string {
	n := len(labels) - 1
	for _, l := range labels {
		n += len(l)
	}

	key := make([]byte, 0, n)
	for i, l := range labels {
		if i > 0 {
			key = append(key, 0)
		}
		key = append(key, l...)
	}

	return string(key)
}
