package dgram

import "errors"

var (
	// ErrSetup wraps every socket creation, option, bind or listen failure.
	ErrSetup = errors.New("dgram: socket setup failed")

	// ErrReservedDescriptor is returned when the kernel hands out one of
	// the standard stream descriptors (0, 1 or 2) for the socket.
	ErrReservedDescriptor = errors.New("dgram: socket got a standard stream descriptor")

	// ErrNotDatagram is returned when a Conn is requested for a socket
	// that is not a UDP datagram socket.
	ErrNotDatagram = errors.New("dgram: not a datagram socket")

	// ErrReceive wraps receive failures.
	ErrReceive = errors.New("dgram: receive failed")

	// ErrOversized is returned when a datagram did not fit the receive
	// buffer. The datagram is discarded.
	ErrOversized = errors.New("dgram: oversized datagram")

	// ErrSend wraps send failures that persisted after draining the
	// deferred error queue.
	ErrSend = errors.New("dgram: send failed")
)
