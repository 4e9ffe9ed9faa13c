//go:build !linux

package dgram

import "net"

// Only Linux queues asynchronous errors per socket. Elsewhere the queue
// is explicitly unavailable and sends are attempted once.
const errorQueueSupported = false

func enableErrorQueue(int, Family) error { return nil }

func newErrorQueue(net.PacketConn) (ErrorQueue, error) { return NoErrorQueue, nil }
