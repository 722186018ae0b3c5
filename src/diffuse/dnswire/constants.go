package dnswire

// Type is a DNS resource record (or question) type code.
//
// See https://tools.ietf.org/html/rfc1035#section-3.2.2 for the common
// types, https://tools.ietf.org/html/rfc3596 for AAAA and
// https://tools.ietf.org/html/rfc2782 for SRV.
type Type uint16

// Type values.
const (
	TypeA     Type = 1  // IPv4 host address
	TypePTR   Type = 12 // domain name pointer
	TypeHINFO Type = 13 // host information
	TypeTXT   Type = 16 // text strings
	TypeAAAA  Type = 28 // IPv6 host address
	TypeSRV   Type = 33 // service location
	TypeNSEC  Type = 47 // next secure record
	TypeANY   Type = 255
)

// Class is a DNS class code.
//
// Only the low 15 bits carry the class on the wire; the top bit is the
// mDNS cache-flush bit on records and the unicast-response bit on
// questions. See https://tools.ietf.org/html/rfc6762#section-10.2 and
// https://tools.ietf.org/html/rfc6762#section-18.12.
type Class uint16

// Class values.
const (
	ClassIN  Class = 1
	ClassANY Class = 255
)

// CacheFlushBit is the top bit of a resource record's class field.
//
// In the Resource Record Sections of a Multicast DNS response, the top
// bit of the rrclass field is used to indicate that the record is a
// member of a unique RRSet, and neighboring hosts should flush cached
// records of the same name, type and class.
//
// See https://tools.ietf.org/html/rfc6762#section-10.2.
const CacheFlushBit = 1 << 15

// UnicastResponseBit is the top bit of a question's class field.
//
// In the Question Section of a Multicast DNS query, the top bit of the
// qclass field is used to indicate that unicast responses are preferred
// for this particular question.
//
// See https://tools.ietf.org/html/rfc6762#section-18.12.
const UnicastResponseBit = 1 << 15

// Opcode is a DNS operation code.
type Opcode uint8

// Opcode values.
const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
)

// Rcode is a DNS response code.
type Rcode uint8

// Rcode values.
const (
	RcodeSuccess        Rcode = 0
	RcodeFormatError    Rcode = 1
	RcodeServerFailure  Rcode = 2
	RcodeNameError      Rcode = 3
	RcodeNotImplemented Rcode = 4
	RcodeRefused        Rcode = 5
)

const (
	// MaxLabelLength is the maximum length of a single DNS label, in octets.
	//
	// See https://tools.ietf.org/html/rfc1035#section-3.1.
	MaxLabelLength = 63

	// MaxNameLength is the maximum encoded length of a DNS name, in octets,
	// including the length prefixes and the root terminator.
	//
	// See https://tools.ietf.org/html/rfc1035#section-3.1.
	MaxNameLength = 255

	// MaxStandardMessageSize is the maximum size of a standard DNS message
	// carried over UDP.
	//
	// See https://tools.ietf.org/html/rfc1035#section-4.2.1.
	MaxStandardMessageSize = 512

	// MaxMulticastMessageSize is the maximum size of an mDNS message,
	// including the IP and UDP headers.
	//
	// See https://tools.ietf.org/html/rfc6762#section-17.
	MaxMulticastMessageSize = 9000

	// headerLength is the fixed length of a DNS message header.
	headerLength = 12

	// maxPointerHops is the number of compression pointers the name decoder
	// follows before declaring a loop.
	maxPointerHops = 128

	// maxPointerOffset is the largest message offset addressable by a
	// 14-bit compression pointer.
	maxPointerOffset = 0x3FFF
)
