// Package dgram opens the listening socket of the responder and performs
// datagram I/O on it.
//
// Receives and sends carry per-packet ancillary data so replies leave
// from the local address a request arrived on, and both directions drain
// the kernel's deferred error queue where the platform has one.
package dgram

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// Family is the address family of a socket.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// wildcard returns the unspecified address of the family.
func (f Family) wildcard() string {
	if f == FamilyIPv6 {
		return "::"
	}
	return "0.0.0.0"
}

// Kind is the socket type.
type Kind int

const (
	KindDatagram Kind = iota
	KindStream
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindRaw:
		return "raw"
	default:
		return "datagram"
	}
}

// Options describes the socket to open.
type Options struct {
	Family Family
	Kind   Kind

	// Protocol is the IP protocol number of a KindRaw socket. Datagram
	// sockets always use UDP and stream sockets TCP.
	Protocol int

	// Port is the local port. Raw sockets have no port.
	Port int

	// AllowStdDescriptors disables the check that rejects descriptors
	// 0, 1 and 2.
	AllowStdDescriptors bool

	// DisableErrorQueue leaves IP_RECVERR off even where it exists.
	// Sends are then attempted exactly once.
	DisableErrorQueue bool
}

// network returns the net package network name for the options.
func (o Options) network() string {
	v := "4"
	if o.Family == FamilyIPv6 {
		v = "6"
	}
	switch o.Kind {
	case KindStream:
		return "tcp" + v
	case KindRaw:
		return "ip" + v + ":" + strconv.Itoa(o.Protocol)
	default:
		return "udp" + v
	}
}

// address returns the wildcard bind address for the options.
func (o Options) address() string {
	if o.Kind == KindRaw {
		return o.Family.wildcard()
	}
	return net.JoinHostPort(o.Family.wildcard(), strconv.Itoa(o.Port))
}

// Socket is an open listening socket.
type Socket struct {
	Family   Family
	Kind     Kind
	Protocol int
	Port     int

	packet     net.PacketConn
	stream     net.Listener
	errorQueue bool
}

// Open creates a socket bound to the wildcard address of opts.Family.
//
// Datagram and raw sockets get destination address ancillary data and,
// where supported, the deferred error queue. IPv6 sockets are v6-only.
// Stream sockets are put in listening mode with the system's maximum
// backlog. Every failure closes the socket and wraps ErrSetup.
func Open(ctx context.Context, opts Options) (*Socket, error) {
	s := &Socket{
		Family:     opts.Family,
		Kind:       opts.Kind,
		Protocol:   opts.Protocol,
		Port:       opts.Port,
		errorQueue: opts.Kind != KindStream && !opts.DisableErrorQueue && errorQueueSupported,
	}
	switch opts.Kind {
	case KindDatagram:
		s.Protocol = unix.IPPROTO_UDP
	case KindStream:
		s.Protocol = unix.IPPROTO_TCP
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				opErr = s.configure(int(fd), opts)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}

	network, address := opts.network(), opts.address()
	if opts.Kind == KindStream {
		ln, err := lc.Listen(ctx, network, address)
		if err != nil {
			return nil, fmt.Errorf("%w: listen %s %s: %w", ErrSetup, network, address, err)
		}
		s.stream = ln
		s.Port = ln.Addr().(*net.TCPAddr).Port
		return s, nil
	}

	pc, err := lc.ListenPacket(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s %s: %w", ErrSetup, network, address, err)
	}
	if err := enableDestination(pc, opts.Family); err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: destination address option: %w", ErrSetup, err)
	}
	s.packet = pc
	if ua, ok := pc.LocalAddr().(*net.UDPAddr); ok {
		s.Port = ua.Port
	}
	return s, nil
}

// configure runs on the raw descriptor before bind.
func (s *Socket) configure(fd int, opts Options) error {
	if !opts.AllowStdDescriptors && fd <= 2 {
		return ErrReservedDescriptor
	}
	if opts.Family == FamilyIPv6 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
			return fmt.Errorf("IPV6_V6ONLY: %w", err)
		}
	}
	if s.errorQueue {
		if err := enableErrorQueue(fd, opts.Family); err != nil {
			return fmt.Errorf("deferred error queue: %w", err)
		}
	}
	return nil
}

// PacketConn returns the connection of a datagram or raw socket.
func (s *Socket) PacketConn() net.PacketConn { return s.packet }

// Listener returns the listener of a stream socket.
func (s *Socket) Listener() net.Listener { return s.stream }

// ErrorQueue reports whether the deferred error queue is enabled.
func (s *Socket) ErrorQueue() bool { return s.errorQueue }

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() net.Addr {
	if s.stream != nil {
		return s.stream.Addr()
	}
	return s.packet.LocalAddr()
}

// Close closes the socket.
func (s *Socket) Close() error {
	if s.stream != nil {
		return s.stream.Close()
	}
	return s.packet.Close()
}

// ControlBufferSize is the size of the ancillary buffer needed to hold
// the destination address and interface of one datagram of either family.
var ControlBufferSize = controlBufferSize()

func controlBufferSize() int {
	n := max(
		len(ipv4.NewControlMessage(ipv4.FlagDst|ipv4.FlagInterface)),
		len(ipv6.NewControlMessage(ipv6.FlagDst|ipv6.FlagInterface)),
	)
	// Platforms without ancillary support report zero; keep a small
	// buffer so reads never fail on a nil slice.
	return max(n, 64)
}

// enableDestination asks the kernel to report the destination address
// and interface of each received datagram.
func enableDestination(pc net.PacketConn, f Family) error {
	if f == FamilyIPv6 {
		return ipv6.NewPacketConn(pc).SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true)
	}
	return ipv4.NewPacketConn(pc).SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true)
}

// parseDestination extracts the local address to reply from and the
// interface index from received ancillary data. For IPv4 on Linux that is
// the kernel's ipi_spec_dst, so a datagram sent to a broadcast address is
// answered from the interface address. Missing data yields a nil address.
func parseDestination(f Family, oob []byte) (net.IP, int) {
	if len(oob) == 0 {
		return nil, 0
	}
	if f == FamilyIPv6 {
		var cm ipv6.ControlMessage
		if err := cm.Parse(oob); err != nil {
			return nil, 0
		}
		return cm.Dst, cm.IfIndex
	}
	var cm ipv4.ControlMessage
	if err := cm.Parse(oob); err != nil {
		return nil, 0
	}
	if src := replySource(oob); src != nil {
		return src, cm.IfIndex
	}
	return cm.Dst, cm.IfIndex
}

// replyControl builds the ancillary data that sources a reply from the
// local address the request was received on.
//
// Without a usable unicast address only the interface is pinned and the
// kernel picks the source.
func replyControl(f Family, local net.IP, ifIndex int) []byte {
	if local == nil || local.IsMulticast() || local.Equal(net.IPv4bcast) {
		local = nil
	}
	if local == nil && ifIndex == 0 {
		return nil
	}
	if f == FamilyIPv6 {
		return (&ipv6.ControlMessage{Src: local, IfIndex: ifIndex}).Marshal()
	}
	return (&ipv4.ControlMessage{Src: local, IfIndex: ifIndex}).Marshal()
}
