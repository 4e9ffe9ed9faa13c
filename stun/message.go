package stun

import (
	"fmt"
)

// HeaderLen is the STUN header size in bytes.
const HeaderLen = 20

// Message represents a STUN message (header + attributes).
//
// Cookie carries the magic cookie for RFC 5389 messages. For classic
// RFC 3489 messages it holds the first four bytes of the 128-bit
// transaction ID and is echoed back unchanged in responses.
type Message struct {
	Method        uint16
	Class         int
	Length        uint16 // computed from Attributes when marshaling
	Cookie        uint32
	TransactionID TransactionID
	Attributes    []Attribute
}

// Attribute represents a single STUN TLV attribute.
type Attribute struct {
	Type  uint16
	Value []byte
}

// NewBindingRequest creates a STUN Binding Request message.
func NewBindingRequest(tid TransactionID) *Message {
	return &Message{
		Method:        MethodBinding,
		Class:         ClassRequest,
		Cookie:        MagicCookie,
		TransactionID: tid,
	}
}

// HasCookie reports whether the message follows the RFC 5389 magic
// cookie convention.
func (m *Message) HasCookie() bool {
	return m.Cookie == MagicCookie
}

// IsRequest reports whether the message is of the request class.
func (m *Message) IsRequest() bool {
	return m.Class == ClassRequest
}

// Add appends an attribute. Padding is applied when marshaling.
func (m *Message) Add(typ uint16, value []byte) {
	m.Attributes = append(m.Attributes, Attribute{Type: typ, Value: value})
}

// String returns a short description used in logs.
func (m *Message) String() string {
	return fmt.Sprintf("method=0x%03x class=%d attrs=%d tid=%x",
		m.Method, m.Class, len(m.Attributes), m.TransactionID[:])
}

// attrSize returns the encoded size of the attribute section.
func (m *Message) attrSize() int {
	n := 0
	for _, a := range m.Attributes {
		n += 4 + padded(len(a.Value))
	}
	return n
}

// Marshal serializes the message into a new byte slice.
func (m *Message) Marshal() []byte {
	out := make([]byte, HeaderLen+m.attrSize())
	n, err := m.MarshalTo(out)
	if err != nil {
		return nil
	}
	return out[:n]
}

// MarshalTo serializes the message into dst and returns the number of
// bytes written. dst may alias the buffer the request was parsed from:
// Parse copies attribute values out of the packet.
func (m *Message) MarshalTo(dst []byte) (int, error) {
	attrLen := m.attrSize()
	if attrLen > 0xFFFF {
		return 0, ErrMessageTooLarge
	}
	total := HeaderLen + attrLen
	if len(dst) < total {
		return 0, ErrBufferTooSmall
	}
	m.Length = uint16(attrLen)

	putU16(dst[0:2], stunType(m.Method, m.Class))
	putU16(dst[2:4], m.Length)
	putU32(dst[4:8], m.Cookie)
	copy(dst[8:20], m.TransactionID[:])

	off := HeaderLen
	for _, a := range m.Attributes {
		vlen := len(a.Value)
		putU16(dst[off:off+2], a.Type)
		putU16(dst[off+2:off+4], uint16(vlen))
		copy(dst[off+4:off+4+vlen], a.Value)
		for i := vlen; i < padded(vlen); i++ {
			dst[off+4+i] = 0
		}
		off += 4 + padded(vlen)
	}

	return total, nil
}

// Parse parses a raw packet into a STUN message.
//
// Parse only checks the framing: the message type prefix, the declared
// length and the attribute layout. Policy such as the magic cookie
// requirement or FINGERPRINT checks belongs to Agent.Validate.
func Parse(pkt []byte) (*Message, error) {
	if len(pkt) < HeaderLen {
		return nil, ErrNotSTUN
	}

	// The two most significant bits of the type are always zero.
	if (pkt[0] & 0xC0) != 0x00 {
		return nil, ErrNotSTUN
	}

	t := readU16(pkt[0:2])
	length := readU16(pkt[2:4])

	if length%4 != 0 {
		return nil, ErrNotSTUN
	}
	if HeaderLen+int(length) > len(pkt) {
		return nil, ErrNotSTUN
	}

	method, class := parseType(t)
	msg := &Message{
		Method: method,
		Class:  class,
		Length: length,
		Cookie: readU32(pkt[4:8]),
	}
	copy(msg.TransactionID[:], pkt[8:20])

	attrs, err := parseAttributes(pkt[HeaderLen : HeaderLen+int(length)])
	if err != nil {
		return nil, err
	}
	msg.Attributes = attrs
	return msg, nil
}

// parseAttributes parses a sequence of STUN attributes.
func parseAttributes(b []byte) ([]Attribute, error) {
	var attrs []Attribute
	off := 0
	for off < len(b) {
		if off+4 > len(b) {
			return nil, ErrNotSTUN
		}
		typ := readU16(b[off : off+2])
		vlen := int(readU16(b[off+2 : off+4]))
		off += 4

		if off+padded(vlen) > len(b) {
			return nil, ErrNotSTUN
		}
		val := make([]byte, vlen)
		copy(val, b[off:off+vlen])
		attrs = append(attrs, Attribute{Type: typ, Value: val})

		off += padded(vlen)
	}
	return attrs, nil
}

// GetAttribute returns the first attribute with the given type.
func (m *Message) GetAttribute(typ uint16) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Type == typ {
			return a, true
		}
	}
	return Attribute{}, false
}

// padded rounds n up to a 32-bit boundary.
func padded(n int) int {
	return (n + 3) &^ 3
}
