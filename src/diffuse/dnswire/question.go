package dnswire

import "fmt"

// Question is a single entry in the question section of a DNS message.
type Question struct {
	Name Name
	Type Type

	// Class is the question class, without the mDNS unicast-response bit.
	Class Class

	// UnicastResponse is the mDNS QU flag: true if a unicast response is
	// preferred for this question.
	//
	// See https://tools.ietf.org/html/rfc6762#section-18.12.
	UnicastResponse bool
}

// encode appends the question's wire representation to b.
func (q Question) encode(b *Buffer) {
	b.WriteName(q.Name)
	b.WriteU16(uint16(q.Type))

	cls := uint16(q.Class)
	if q.UnicastResponse {
		cls |= UnicastResponseBit
	}
	b.WriteU16(cls)
}

// decodeQuestion decodes the question starting at offset within msg,
// returning the question and the number of octets it occupies.
func decodeQuestion(msg []byte, offset int) (Question, int, error) {
	name, n, err := DecodeName(msg, offset)
	if err != nil {
		return Question{}, 0, err
	}

	pos := offset + n
	if pos+4 > len(msg) {
		return Question{}, 0, fmt.Errorf(
			"%w: truncated question",
			ErrInvalidMessage,
		)
	}

	t := Type(uint16(msg[pos])<<8 | uint16(msg[pos+1]))
	if !isSupportedType(t) {
		return Question{}, 0, fmt.Errorf(
			"%w: question type %d",
			ErrUnsupportedType,
			t,
		)
	}

	cls := uint16(msg[pos+2])<<8 | uint16(msg[pos+3])

	return Question{
		Name:            name,
		Type:            t,
		Class:           Class(cls &^ UnicastResponseBit),
		UnicastResponse: cls&UnicastResponseBit != 0,
	}, n + 4, nil
}

// isSupportedType returns true if t is in the set of type codes this
// library recognizes in questions.
func isSupportedType(t Type) bool {
	switch t {
	case TypeA, TypePTR, TypeHINFO, TypeTXT, TypeAAAA, TypeSRV, TypeNSEC, TypeANY:
		return true
	default:
		return false
	}
}
