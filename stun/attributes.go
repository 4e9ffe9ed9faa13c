package stun

import (
	"encoding/binary"
	"net"
)

// MappedAddress is a decoded (XOR-)MAPPED-ADDRESS.
type MappedAddress struct {
	IP   net.IP
	Port int
}

// String returns the address in host:port form.
func (a MappedAddress) String() string {
	return (&net.UDPAddr{IP: a.IP, Port: a.Port}).String()
}

// DecodeMappedAddress decodes MAPPED-ADDRESS (RFC 5389 legacy).
func DecodeMappedAddress(a Attribute) (MappedAddress, error) {
	return decodeAddress(a.Value, false, TransactionID{})
}

// DecodeXORMappedAddress decodes XOR-MAPPED-ADDRESS (RFC 5389).
func DecodeXORMappedAddress(a Attribute, tid TransactionID) (MappedAddress, error) {
	return decodeAddress(a.Value, true, tid)
}

// xorKey returns magic cookie || transaction ID, the IPv6 obfuscation key.
// IPv4 addresses only use its first four bytes.
func xorKey(tid TransactionID) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint32(key[0:4], MagicCookie)
	copy(key[4:16], tid[:])
	return key
}

// decodeAddress decodes an (XOR-)MAPPED-ADDRESS attribute payload.
func decodeAddress(v []byte, xor bool, tid TransactionID) (MappedAddress, error) {
	// 0: reserved, 1: family, 2-3: port, 4..: address
	if len(v) < 4 {
		return MappedAddress{}, ErrNotSTUN
	}
	fam := v[1]
	port := int(binary.BigEndian.Uint16(v[2:4]))
	if xor {
		port ^= int(uint16(MagicCookie >> 16))
	}

	var ip net.IP
	switch fam {
	case familyIPv4:
		if len(v) < 8 {
			return MappedAddress{}, ErrNotSTUN
		}
		ip = make(net.IP, net.IPv4len)
		copy(ip, v[4:8])
	case familyIPv6:
		if len(v) < 20 {
			return MappedAddress{}, ErrNotSTUN
		}
		ip = make(net.IP, net.IPv6len)
		copy(ip, v[4:20])
	default:
		return MappedAddress{}, ErrNotSTUN
	}

	if xor {
		key := xorKey(tid)
		for i := range ip {
			ip[i] ^= key[i]
		}
	}
	return MappedAddress{IP: ip, Port: port}, nil
}

// encodeAddress builds an (XOR-)MAPPED-ADDRESS attribute payload.
func encodeAddress(addr *net.UDPAddr, xor bool, tid TransactionID) ([]byte, error) {
	if addr == nil || addr.Port < 0 || addr.Port > 0xFFFF {
		return nil, ErrInvalidAddress
	}

	var v []byte
	ip := addr.IP.To4()
	if ip != nil {
		v = make([]byte, 8)
		v[1] = familyIPv4
	} else if ip = addr.IP.To16(); ip != nil {
		v = make([]byte, 20)
		v[1] = familyIPv6
	} else {
		return nil, ErrInvalidAddress
	}

	port := uint16(addr.Port)
	if xor {
		port ^= uint16(MagicCookie >> 16)
	}
	binary.BigEndian.PutUint16(v[2:4], port)
	copy(v[4:], ip)

	if xor {
		key := xorKey(tid)
		for i := range ip {
			v[4+i] ^= key[i]
		}
	}
	return v, nil
}

// AppendAddress appends a plain address attribute of type typ, such as
// MAPPED-ADDRESS.
func (m *Message) AppendAddress(typ uint16, addr *net.UDPAddr) error {
	v, err := encodeAddress(addr, false, m.TransactionID)
	if err != nil {
		return err
	}
	m.Add(typ, v)
	return nil
}

// AppendXORAddress appends an address attribute of type typ obfuscated
// with the magic cookie and the message transaction ID, such as
// XOR-MAPPED-ADDRESS.
func (m *Message) AppendXORAddress(typ uint16, addr *net.UDPAddr) error {
	v, err := encodeAddress(addr, true, m.TransactionID)
	if err != nil {
		return err
	}
	m.Add(typ, v)
	return nil
}

// FindMappedAddress tries XOR-MAPPED-ADDRESS first, then MAPPED-ADDRESS.
func FindMappedAddress(msg *Message) (MappedAddress, error) {
	if a, ok := msg.GetAttribute(AttrXORMappedAddress); ok {
		return DecodeXORMappedAddress(a, msg.TransactionID)
	}
	if a, ok := msg.GetAttribute(AttrMappedAddress); ok {
		return DecodeMappedAddress(a)
	}
	return MappedAddress{}, ErrNoMappedAddress
}

// ErrorCode is a STUN error response code (300-699).
type ErrorCode int

const (
	CodeTryAlternate     ErrorCode = 300
	CodeBadRequest       ErrorCode = 400
	CodeUnauthorized     ErrorCode = 401
	CodeUnknownAttribute ErrorCode = 420
	CodeStaleNonce       ErrorCode = 438
	CodeServerError      ErrorCode = 500
)

var errorReasons = map[ErrorCode]string{
	CodeTryAlternate:     "Try Alternate",
	CodeBadRequest:       "Bad Request",
	CodeUnauthorized:     "Unauthorized",
	CodeUnknownAttribute: "Unknown Attribute",
	CodeStaleNonce:       "Stale Nonce",
	CodeServerError:      "Server Error",
}

// Reason returns the standard reason phrase for the code.
func (c ErrorCode) Reason() string {
	if r, ok := errorReasons[c]; ok {
		return r
	}
	return "Unknown Error"
}

// buildErrorCodeAttr encodes ERROR-CODE: two reserved bytes, the class
// (hundreds digit), the number (code modulo 100) and the reason phrase.
func buildErrorCodeAttr(code ErrorCode) Attribute {
	reason := code.Reason()
	v := make([]byte, 4+len(reason))
	v[2] = byte(code / 100)
	v[3] = byte(code % 100)
	copy(v[4:], reason)
	return Attribute{Type: AttrErrorCode, Value: v}
}

// DecodeErrorCode decodes an ERROR-CODE attribute.
func DecodeErrorCode(a Attribute) (ErrorCode, string, error) {
	if len(a.Value) < 4 {
		return 0, "", ErrNotSTUN
	}
	code := ErrorCode(int(a.Value[2]&0x07)*100 + int(a.Value[3]))
	return code, string(a.Value[4:]), nil
}

// buildUnknownAttributesAttr encodes UNKNOWN-ATTRIBUTES.
//
// RFC 3489 requires the list to be 32-bit aligned by repeating one of
// the types; RFC 5389 uses plain padding instead.
func buildUnknownAttributesAttr(types []uint16, classic bool) Attribute {
	if classic && len(types)%2 == 1 {
		types = append(types, types[len(types)-1])
	}
	v := make([]byte, 2*len(types))
	for i, t := range types {
		putU16(v[2*i:], t)
	}
	return Attribute{Type: AttrUnknownAttributes, Value: v}
}

// DecodeUnknownAttributes decodes an UNKNOWN-ATTRIBUTES attribute.
func DecodeUnknownAttributes(a Attribute) ([]uint16, error) {
	if len(a.Value)%2 != 0 {
		return nil, ErrNotSTUN
	}
	types := make([]uint16, 0, len(a.Value)/2)
	for i := 0; i < len(a.Value); i += 2 {
		types = append(types, readU16(a.Value[i:]))
	}
	return types, nil
}

// buildSoftwareAttr encodes a SOFTWARE attribute.
func buildSoftwareAttr(software string) Attribute {
	return Attribute{
		Type:  AttrSoftware,
		Value: []byte(software),
	}
}
