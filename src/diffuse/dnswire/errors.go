package dnswire

import "errors"

// Predefined error kinds.
//
// Decoders and constructors wrap these with fmt.Errorf("...: %w", ...) so
// that callers can discriminate with errors.Is().
var (
	// ErrInvalidName indicates that a DNS name could not be constructed,
	// such as an empty label, a label longer than 63 octets, or a total
	// encoded length over 255 octets.
	ErrInvalidName = errors.New("dnswire: invalid name")

	// ErrInvalidMessage indicates that a DNS message could not be decoded
	// from its wire representation.
	ErrInvalidMessage = errors.New("dnswire: invalid message")

	// ErrUnsupportedType indicates that a question carries a type code that
	// is not in the recognized set.
	//
	// Resource records with unrecognized type codes are NOT errors; they
	// decode to Unknown rdata and round-trip opaquely.
	ErrUnsupportedType = errors.New("dnswire: unsupported record type")
)
