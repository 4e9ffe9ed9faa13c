package dgram

import "net"

// This file exposes unexported functions for black-box tests
// in package dgram_test. It is compiled only during `go test`.

// PacketConn mirrors the unexported packetConn interface.
type PacketConn = packetConn

// constructor
var TestNewConn = newConn

// ancillary data
var TestParseDestination = parseDestination
var TestReplyControl = replyControl

// TestNetwork returns the network and address Open would listen on.
var TestNetwork = func(opts Options) (string, string) {
	return opts.network(), opts.address()
}

// TestUDPConn returns the *net.UDPConn of a datagram socket.
var TestUDPConn = func(s *Socket) *net.UDPConn {
	return s.packet.(*net.UDPConn)
}

// TestQueue returns the error queue a Conn drains.
var TestQueue = func(c *Conn) ErrorQueue {
	return c.queue
}
