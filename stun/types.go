package stun

import (
	"crypto/rand"
	"encoding/binary"
)

// RFC 5389 magic cookie.
const MagicCookie uint32 = 0x2112A442

// DefaultPort is the well-known STUN port for UDP and TCP.
const DefaultPort = 3478

// MaxMessageSize is the largest STUN message this package will receive
// or build: a 20 byte header followed by the largest 32-bit aligned
// attribute section that fits the 16-bit length field.
const MaxMessageSize = HeaderLen + 0xFFFC

// MinMessageSize is the smallest receive buffer a responder may use. It is
// the IPv4 minimum reassembly size and holds every response built for a
// request that fits it, SOFTWARE aside.
const MinMessageSize = 576

// STUN methods.
const (
	MethodBinding uint16 = 0x0001

	// MethodSharedSecret only exists in RFC 3489 and is answered with 400.
	MethodSharedSecret uint16 = 0x0002
)

// STUN message classes.
const (
	ClassRequest         = 0x00
	ClassIndication      = 0x01
	ClassSuccessResponse = 0x02
	ClassErrorResponse   = 0x03
)

// Attribute types (RFC 5389 / RFC 3489).
const (
	AttrMappedAddress     uint16 = 0x0001
	AttrUsername          uint16 = 0x0006
	AttrMessageIntegrity  uint16 = 0x0008
	AttrErrorCode         uint16 = 0x0009
	AttrUnknownAttributes uint16 = 0x000A
	AttrRealm             uint16 = 0x0014
	AttrNonce             uint16 = 0x0015
	AttrXORMappedAddress  uint16 = 0x0020
	AttrSoftware          uint16 = 0x8022
	AttrAlternateServer   uint16 = 0x8023
	AttrFingerprint       uint16 = 0x8028
)

// Address families used by (XOR-)MAPPED-ADDRESS.
const (
	familyIPv4 = 0x01
	familyIPv6 = 0x02
)

// ComprehensionRequired reports whether an agent must understand
// attribute typ to process the message (types 0x0000-0x7FFF).
func ComprehensionRequired(typ uint16) bool {
	return typ < 0x8000
}

// TransactionID is a 96-bit (12 bytes) ID used to match requests and responses.
type TransactionID [12]byte

// NewTransactionID generates a new cryptographically random transaction ID.
func NewTransactionID() (TransactionID, error) {
	var id TransactionID
	_, err := rand.Read(id[:])
	return id, err
}

// stunType packs method and class into the 16-bit message type field.
func stunType(method uint16, class int) uint16 {
	m := method & 0x0FFF
	c := uint16(class & 0x03)

	// M0-3 | C0 | M4-6 | C1 | M7-11
	t := uint16(0)
	t |= (m & 0x000F)
	t |= (c & 0x01) << 4
	t |= (m & 0x0070) << 1
	t |= (c & 0x02) << 7
	t |= (m & 0x0F80) << 2
	return t
}

// parseType is the inverse of stunType.
func parseType(t uint16) (method uint16, class int) {
	m := uint16(0)
	c0 := (t >> 4) & 0x1
	c1 := (t >> 8) & 0x1

	m |= (t & 0x000F)
	m |= (t >> 1) & 0x0070
	m |= (t >> 2) & 0x0F80

	return m, int(c0 | (c1 << 1))
}

func readU16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

func readU32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func putU16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
