package stund

import "errors"

var (
	// ErrDropped is returned by Dispatcher.Process when a datagram gets
	// no reply: it failed validation or was not a request.
	ErrDropped = errors.New("stund: datagram dropped")

	// ErrShortWrite is returned when fewer bytes than the encoded
	// response were sent.
	ErrShortWrite = errors.New("stund: short write")

	// ErrInvalidConfig is returned by Listen for a Config it cannot serve.
	ErrInvalidConfig = errors.New("stund: invalid config")
)
