package dnssd

import "strings"

// Text represents the key/value attributes carried in a service instance's
// TXT record.
//
// The attributes are held as an ordered sequence of raw strings, each
// either "key" (a boolean attribute) or "key=value"; the sequence order is
// the wire order. A derived index maps each lowercased key to the
// positions of its entries, so single-value lookups are constant time.
//
// Keys are case-insensitive over ASCII letters, per
// https://tools.ietf.org/html/rfc6763#section-6.4. Values preserve case
// and may contain '='; only the first '=' separates the key from the
// value.
//
// DNS-SD treats a key as having a single value (the first occurrence
// wins). Some protocols, notably libp2p, place the same key in a TXT
// record multiple times; the Values/Add/SetValues methods expose that
// multi-value view.
type Text struct {
	raw   []string
	index map[string][]int
}

// NewText returns a Text holding the given raw strings, preserving their
// order. Empty strings are dropped, per
// https://tools.ietf.org/html/rfc6763#section-6.1.
func NewText(raw ...string) Text {
	var t Text

	for _, s := range raw {
		if s == "" {
			continue
		}

		k, _ := splitPair(s)
		t.appendRaw(foldKey(k), s)
	}

	return t
}

// Get returns the first value associated with the key k, per the DNS-SD
// single-value convention. A boolean attribute yields an empty string.
func (t *Text) Get(k string) (string, bool) {
	positions, ok := t.index[foldKey(k)]
	if !ok {
		return "", false
	}

	_, v := splitPair(t.raw[positions[0]])
	return v, true
}

// Has returns true if at least one entry exists for the key k.
func (t *Text) Has(k string) bool {
	_, ok := t.index[foldKey(k)]
	return ok
}

// Values returns all values associated with the key k, in insertion order.
func (t *Text) Values(k string) []string {
	positions, ok := t.index[foldKey(k)]
	if !ok {
		return nil
	}

	values := make([]string, len(positions))
	for i, p := range positions {
		_, values[i] = splitPair(t.raw[p])
	}

	return values
}

// Set replaces all entries for the key k with a single entry carrying the
// value v. An empty value produces a boolean attribute.
func (t *Text) Set(k, v string) {
	if k == "" {
		return
	}

	t.Delete(k)
	t.Add(k, v)
}

// Add appends another entry for the key k without disturbing existing
// entries.
func (t *Text) Add(k, v string) {
	if k == "" {
		return
	}

	s := k
	if v != "" {
		s = k + "=" + v
	}

	t.appendRaw(foldKey(k), s)
}

// SetValues replaces all entries for the key k with one entry per value in
// vs, in order.
func (t *Text) SetValues(k string, vs []string) {
	if k == "" {
		return
	}

	t.Delete(k)
	for _, v := range vs {
		t.Add(k, v)
	}
}

// Delete removes all entries for the key k.
func (t *Text) Delete(k string) {
	key := foldKey(k)

	positions, ok := t.index[key]
	if !ok {
		return
	}

	raw := make([]string, 0, len(t.raw)-len(positions))
	for i, s := range t.raw {
		if !containsInt(positions, i) {
			raw = append(raw, s)
		}
	}

	// Removal shifts the positions of every later entry, so the index is
	// rebuilt rather than patched.
	t.raw = raw
	t.index = nil
	for i, s := range t.raw {
		k, _ := splitPair(s)
		t.indexAt(foldKey(k), i)
	}
}

// Strings returns the raw entries in insertion order, as they appear in
// the TXT record's rdata.
func (t *Text) Strings() []string {
	return t.raw
}

// Len returns the number of entries.
func (t *Text) Len() int {
	return len(t.raw)
}

func (t *Text) appendRaw(key, s string) {
	t.raw = append(t.raw, s)
	t.indexAt(key, len(t.raw)-1)
}

func (t *Text) indexAt(key string, pos int) {
	if t.index == nil {
		t.index = map[string][]int{}
	}

	t.index[key] = append(t.index[key], pos)
}

// splitPair splits a raw entry into its key and value. An entry without
// '=' is a boolean attribute whose value is the empty string.
func splitPair(s string) (string, string) {
	if i := strings.IndexByte(s, '='); i != -1 {
		return s[:i], s[i+1:]
	}

	return s, ""
}

// foldKey lowercases the ASCII letters of a key.
func foldKey(k string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}, k)
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}

	return false
}
