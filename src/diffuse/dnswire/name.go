package dnswire

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Name is a DNS name: an ordered sequence of labels.
//
// The zero value is the root name. Names are immutable once constructed;
// all mutating operations return a new name.
//
// Name identity is case-insensitive over ASCII letters only, per
// https://tools.ietf.org/html/rfc6762#section-16. The original case is
// preserved for display and encoding.
type Name struct {
	labels []string
}

// NewName returns a name formed from the given labels.
//
// Each label must be 1-63 octets of valid UTF-8, and the total encoded
// length must not exceed 255 octets including the length prefixes and the
// root terminator.
func NewName(labels ...string) (Name, error) {
	n := Name{labels}

	if err := n.Validate(); err != nil {
		return Name{}, err
	}

	return n, nil
}

// ParseName parses a dot-separated name such as "_http._tcp.local." into
// its labels. The trailing dot is optional. Parsing "." yields the root
// name.
//
// Because DNS-SD instance labels may themselves contain dots, ParseName is
// only suitable for names whose labels are known to be dot-free, such as
// service types and host names. Use Prepend to attach an instance label.
func ParseName(s string) (Name, error) {
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Name{}, nil
	}

	return NewName(strings.Split(s, ".")...)
}

// Prepend returns a new name with label prefixed to n's labels.
func (n Name) Prepend(label string) (Name, error) {
	labels := make([]string, 0, len(n.labels)+1)
	labels = append(labels, label)
	labels = append(labels, n.labels...)

	return NewName(labels...)
}

// Labels returns the labels that form this name.
func (n Name) Labels() []string {
	return n.labels
}

// IsRoot returns true if this is the root name.
func (n Name) IsRoot() bool {
	return len(n.labels) == 0
}

// EncodedLen returns the length of the name's uncompressed wire
// representation, in octets.
func (n Name) EncodedLen() int {
	l := 1 // root terminator
	for _, label := range n.labels {
		l += 1 + len(label)
	}

	return l
}

// Validate returns nil if the name is valid.
func (n Name) Validate() error {
	for _, label := range n.labels {
		if label == "" {
			return fmt.Errorf("%w: empty label", ErrInvalidName)
		}

		if len(label) > MaxLabelLength {
			return fmt.Errorf(
				"%w: label '%s' is longer than %d octets",
				ErrInvalidName,
				label,
				MaxLabelLength,
			)
		}

		if !utf8.ValidString(label) {
			return fmt.Errorf("%w: label is not valid UTF-8", ErrInvalidName)
		}
	}

	if l := n.EncodedLen(); l > MaxNameLength {
		return fmt.Errorf(
			"%w: encoded length %d exceeds %d octets",
			ErrInvalidName,
			l,
			MaxNameLength,
		)
	}

	return nil
}

// Equal returns true if n and o are the same name, ignoring ASCII case.
func (n Name) Equal(o Name) bool {
	if len(n.labels) != len(o.labels) {
		return false
	}

	for i, l := range n.labels {
		if !foldEqual(l, o.labels[i]) {
			return false
		}
	}

	return true
}

// HasSuffix returns true if n ends with the labels of s, ignoring ASCII
// case.
func (n Name) HasSuffix(s Name) bool {
	d := len(n.labels) - len(s.labels)
	if d < 0 {
		return false
	}

	for i, l := range s.labels {
		if !foldEqual(n.labels[d+i], l) {
			return false
		}
	}

	return true
}

// Key returns a canonical representation of the name for use as a map key.
//
// Two names that compare Equal() always produce the same key.
func (n Name) Key() string {
	var b strings.Builder

	for i, l := range n.labels {
		if i > 0 {
			b.WriteByte('.')
		}
		for j := 0; j < len(l); j++ {
			b.WriteByte(foldByte(l[j]))
		}
	}
	b.WriteByte('.')

	return b.String()
}

// String returns the dot-separated representation of the name, with a
// trailing dot. The root name renders as ".".
func (n Name) String() string {
	if n.IsRoot() {
		return "."
	}

	return strings.Join(n.labels, ".") + "."
}

// DecodeName decodes the name starting at offset within msg, following
// compression pointers as necessary.
//
// It returns the decoded name and the number of octets the name occupies
// at the starting offset. Pointers followed do not advance the outer
// cursor beyond the first pointer itself.
func DecodeName(msg []byte, offset int) (Name, int, error) {
	var labels []string

	pos := offset
	consumed := 0
	hops := 0
	jumped := false

	for {
		if pos >= len(msg) {
			return Name{}, 0, fmt.Errorf(
				"%w: unterminated name at offset %d",
				ErrInvalidMessage,
				offset,
			)
		}

		b := msg[pos]

		switch b & 0xC0 {
		case 0x00:
			if b == 0 {
				if !jumped {
					consumed = pos + 1 - offset
				}

				n := Name{labels}
				if err := n.Validate(); err != nil {
					return Name{}, 0, fmt.Errorf("%w: %s", ErrInvalidMessage, err)
				}

				return n, consumed, nil
			}

			end := pos + 1 + int(b)
			if end > len(msg) {
				return Name{}, 0, fmt.Errorf(
					"%w: label extends past end of message",
					ErrInvalidMessage,
				)
			}

			labels = append(labels, string(msg[pos+1:end]))
			pos = end

		case 0xC0:
			if pos+1 >= len(msg) {
				return Name{}, 0, fmt.Errorf(
					"%w: truncated compression pointer",
					ErrInvalidMessage,
				)
			}

			target := int(b&0x3F)<<8 | int(msg[pos+1])
			if target >= len(msg) {
				return Name{}, 0, fmt.Errorf(
					"%w: compression pointer to offset %d is out of range",
					ErrInvalidMessage,
					target,
				)
			}

			hops++
			if hops > maxPointerHops {
				return Name{}, 0, fmt.Errorf(
					"%w: compression pointer loop",
					ErrInvalidMessage,
				)
			}

			if !jumped {
				consumed = pos + 2 - offset
				jumped = true
			}

			pos = target

		default:
			// Top bits 01 and 10 are reserved by RFC 1035 §4.1.4.
			return Name{}, 0, fmt.Errorf(
				"%w: reserved label type 0x%02x",
				ErrInvalidMessage,
				b&0xC0,
			)
		}
	}
}

// foldByte lowercases a single ASCII letter, leaving all other octets
// unchanged.
func foldByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}

	return c
}

// foldEqual compares two labels, ignoring ASCII case.
func foldEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := 0; i < len(a); i++ {
		if foldByte(a[i]) != foldByte(b[i]) {
			return false
		}
	}

	return true
}
