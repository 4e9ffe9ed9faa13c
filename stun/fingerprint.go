package stun

import (
	"hash/crc32"
)

const (
	fingerprintXOR uint32 = 0x5354554e
	fingerprintLen        = 4 + 4
)

// fingerprint computes the FINGERPRINT value over b, which must end just
// before the FINGERPRINT attribute and carry a header length that
// already counts it.
func fingerprint(b []byte) uint32 {
	return crc32.ChecksumIEEE(b) ^ fingerprintXOR
}

// writeFingerprint fills the trailing FINGERPRINT placeholder of an
// encoded message in place.
func writeFingerprint(b []byte) {
	n := len(b)
	putU32(b[n-4:], fingerprint(b[:n-fingerprintLen]))
}

// checkFingerprint verifies a FINGERPRINT attribute if one is present.
// The attribute must be the last one in the message.
func checkFingerprint(raw []byte, msg *Message) bool {
	idx := -1
	for i, a := range msg.Attributes {
		if a.Type == AttrFingerprint {
			idx = i
			break
		}
	}
	if idx == -1 {
		return true
	}
	if idx != len(msg.Attributes)-1 || len(msg.Attributes[idx].Value) != 4 {
		return false
	}
	end := HeaderLen + int(msg.Length)
	if end > len(raw) || end < HeaderLen+fingerprintLen {
		return false
	}
	return readU32(msg.Attributes[idx].Value) == fingerprint(raw[:end-fingerprintLen])
}
