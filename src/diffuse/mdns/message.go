package mdns

import (
	"errors"
	"net"

	"github.com/jmalloc/diffuse/src/diffuse/dnswire"
)

// NewQuery returns an mDNS query with a single PTR question for the given
// service type, requesting a multicast response.
//
// In multicast query messages the Query Identifier SHOULD be set to zero on
// transmission, per https://tools.ietf.org/html/rfc6762#section-18.1.
func NewQuery(serviceType dnswire.Name) *dnswire.Message {
	return NewMultiQuery(serviceType, []dnswire.Type{dnswire.TypePTR}, false)
}

// NewMultiQuery returns an mDNS query carrying one question per type, all
// for the same name. If unicast is true the questions carry the QU bit,
// requesting a unicast response.
//
// See https://tools.ietf.org/html/rfc6762#section-5.4.
func NewMultiQuery(
	name dnswire.Name,
	types []dnswire.Type,
	unicast bool,
) *dnswire.Message {
	m := &dnswire.Message{}

	for _, t := range types {
		m.Questions = append(m.Questions, dnswire.Question{
			Name:            name,
			Type:            t,
			Class:           dnswire.ClassIN,
			UnicastResponse: unicast,
		})
	}

	return m
}

// NewResponse returns an unsolicited mDNS response carrying the given
// answer and additional records.
//
// In response messages for Multicast domains, the Authoritative Answer bit
// MUST be set to one, per https://tools.ietf.org/html/rfc6762#section-18.4.
func NewResponse(answers, additional []dnswire.ResourceRecord) *dnswire.Message {
	return &dnswire.Message{
		Header: dnswire.Header{
			Response:      true,
			Authoritative: true,
		},
		Answers:    answers,
		Additional: additional,
	}
}

// NewGoodbye returns an mDNS response announcing the withdrawal of the
// given records.
//
// The records are carried as answers with their TTLs set to zero; all
// other fields, including the cache-flush bit, are preserved.
//
// See https://tools.ietf.org/html/rfc6762#section-10.1.
func NewGoodbye(records []dnswire.ResourceRecord) *dnswire.Message {
	answers := make([]dnswire.ResourceRecord, len(records))

	for i, r := range records {
		r.TTL = GoodbyeTTL
		answers[i] = r
	}

	return NewResponse(answers, nil)
}

// ValidateQuery returns an error if m is not a valid mDNS query.
func ValidateQuery(m *dnswire.Message) error {
	if m.Response {
		return errors.New("mdns: message is a response, not a query")
	}

	// https://tools.ietf.org/html/rfc6762#section-18.3
	//
	// "In both multicast query and multicast response messages, the OPCODE
	// MUST be zero on transmission (only standard queries are currently
	// supported over multicast). Multicast DNS messages received with an
	// OPCODE other than zero MUST be silently ignored."
	if m.Opcode != dnswire.OpcodeQuery {
		return errors.New("mdns: OPCODE must be zero (query) in mDNS queries")
	}

	// https://tools.ietf.org/html/rfc6762#section-18.11
	//
	// "In both multicast query and multicast response messages, the
	// Response Code MUST be zero on transmission. Multicast DNS messages
	// received with non-zero Response Codes MUST be silently ignored."
	if m.Rcode != dnswire.RcodeSuccess {
		return errors.New("mdns: RCODE must be zero in mDNS queries")
	}

	return nil
}

// IsLegacySource returns true if addr identifies a "legacy" querier.
//
// If the source UDP port in a received Multicast DNS query is not port
// 5353, the querier is a simple resolver that does not fully implement
// Multicast DNS and expects a standard unicast response.
//
// See https://tools.ietf.org/html/rfc6762#section-6.7.
func IsLegacySource(addr *net.UDPAddr) bool {
	return addr.Port != Port
}
