package dgram

import (
	"errors"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// packetConn is the subset of *net.UDPConn used by Conn.
type packetConn interface {
	ReadMsgUDP(b, oob []byte) (n, oobn, flags int, addr *net.UDPAddr, err error)
	WriteMsgUDP(b, oob []byte, addr *net.UDPAddr) (n, oobn int, err error)
	LocalAddr() net.Addr
	Close() error
}

// Datagram is one received or outgoing UDP payload.
//
// For a received datagram Peer is the source and Local the local address
// to answer from: the address it was sent to, or on Linux the interface
// address the kernel selected when it was sent to a broadcast address.
// For a reply Peer is the destination and Local the source.
type Datagram struct {
	Peer    *net.UDPAddr
	Local   net.IP
	IfIndex int
	Payload []byte
}

// Buffer returns the whole buffer the payload lives in, so a reply can be
// encoded in place. For a received datagram it is only valid until the
// next receive.
func (d *Datagram) Buffer() []byte {
	return d.Payload[:cap(d.Payload)]
}

// Reply returns the datagram that sends payload back to d's source from
// the local address d was received on.
func (d *Datagram) Reply(payload []byte) *Datagram {
	return &Datagram{
		Peer:    d.Peer,
		Local:   d.Local,
		IfIndex: d.IfIndex,
		Payload: payload,
	}
}

// ConnOptions configures a Conn.
type ConnOptions struct {
	// MaxMessageSize bounds received payloads. Larger datagrams are
	// discarded with ErrOversized.
	MaxMessageSize int

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Conn performs datagram I/O on a UDP socket. It reuses one payload
// buffer and one ancillary buffer, so it must not be used concurrently.
type Conn struct {
	pc     packetConn
	queue  ErrorQueue
	family Family
	buf    []byte
	oob    []byte
	log    logrus.FieldLogger
}

// NewConn wraps a datagram socket.
func NewConn(s *Socket, opts ConnOptions) (*Conn, error) {
	udp, ok := s.packet.(*net.UDPConn)
	if s.Kind != KindDatagram || !ok {
		return nil, ErrNotDatagram
	}

	queue := NoErrorQueue
	if s.errorQueue {
		q, err := newErrorQueue(udp)
		if err != nil {
			return nil, fmt.Errorf("%w: error queue: %w", ErrSetup, err)
		}
		queue = q
	}
	return newConn(udp, queue, s.Family, opts), nil
}

func newConn(pc packetConn, queue ErrorQueue, f Family, opts ConnOptions) *Conn {
	size := opts.MaxMessageSize
	if size <= 0 {
		size = 1500
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Conn{
		pc:     pc,
		queue:  queue,
		family: f,
		buf:    make([]byte, size),
		oob:    make([]byte, ControlBufferSize),
		log:    log,
	}
}

// ErrorQueueAvailable reports whether sends retry after draining
// deferred errors. When false every send is a single attempt.
func (c *Conn) ErrorQueueAvailable() bool {
	return c.queue != NoErrorQueue
}

// LocalAddr returns the bound address.
func (c *Conn) LocalAddr() net.Addr { return c.pc.LocalAddr() }

// Close closes the socket, unblocking a pending Receive.
func (c *Conn) Close() error { return c.pc.Close() }

// Receive reads one datagram.
//
// On failure one deferred error is drained before returning, since a
// pending asynchronous error can keep failing later receives. Datagrams
// larger than the buffer are discarded with ErrOversized.
func (c *Conn) Receive() (*Datagram, error) {
	n, oobn, flags, peer, err := c.pc.ReadMsgUDP(c.buf, c.oob)
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			res, qerr := c.queue.Drain()
			c.log.WithFields(logrus.Fields{
				"function": "Receive",
				"drain":    res.String(),
				"deferred": qerr,
			}).Debug("Receive failed")
		}
		return nil, fmt.Errorf("%w: %w", ErrReceive, err)
	}
	if flags&unix.MSG_TRUNC != 0 {
		return nil, fmt.Errorf("%w: from %s exceeds %d bytes", ErrOversized, peer, len(c.buf))
	}

	local, ifIndex := parseDestination(c.family, c.oob[:oobn])
	return &Datagram{
		Peer:    peer,
		Local:   local,
		IfIndex: ifIndex,
		Payload: c.buf[:n],
	}, nil
}

// Send writes out.Payload to out.Peer and returns the bytes sent.
//
// A failed write is retried for as long as each failure is matched by a
// deferred error drained from the queue: such failures report an earlier
// datagram, not this one. Once the queue has nothing left the error is
// returned wrapped in ErrSend.
func (c *Conn) Send(out *Datagram) (int, error) {
	oob := replyControl(c.family, out.Local, out.IfIndex)
	for {
		n, _, err := c.pc.WriteMsgUDP(out.Payload, oob, out.Peer)
		if err == nil {
			return n, nil
		}

		res, qerr := c.queue.Drain()
		if res != DrainedEntry {
			return n, fmt.Errorf("%w: to %s: %w", ErrSend, out.Peer, err)
		}
		c.log.WithFields(logrus.Fields{
			"function": "Send",
			"peer":     out.Peer.String(),
			"deferred": qerr,
		}).Debug("Drained deferred error, retrying send")
	}
}
