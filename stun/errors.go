package stun

import "errors"

var (
	// ErrNotSTUN indicates that the packet is not a valid STUN message.
	ErrNotSTUN = errors.New("stun: not a stun message")

	// ErrNoMappedAddress indicates that the response did not contain any mapped address attribute.
	ErrNoMappedAddress = errors.New("stun: no mapped address in response")

	// ErrTimeout indicates that the STUN transaction timed out.
	ErrTimeout = errors.New("stun: timeout")

	// ErrBufferTooSmall is returned when a message does not fit the destination buffer.
	ErrBufferTooSmall = errors.New("stun: buffer too small")

	// ErrMessageTooLarge is returned when the attribute section exceeds the 16-bit length field.
	ErrMessageTooLarge = errors.New("stun: message too large")

	// ErrInvalidAddress is returned when an address cannot be encoded.
	ErrInvalidAddress = errors.New("stun: invalid address")

	// ErrErrorResponse is wrapped by the client when the server answers with an error response.
	ErrErrorResponse = errors.New("stun: error response")
)
