//go:build linux

package dgram

import (
	"encoding/binary"
	"net"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const errorQueueSupported = true

// sizeofSockExtendedErr is sizeof(struct sock_extended_err).
const sizeofSockExtendedErr = int(unsafe.Sizeof(unix.SockExtendedErr{}))

// enableErrorQueue turns on IP_RECVERR / IPV6_RECVERR for fd.
func enableErrorQueue(fd int, f Family) error {
	if f == FamilyIPv6 {
		return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_RECVERR, 1)
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_RECVERR, 1)
}

// kernelErrorQueue reads the socket error queue with MSG_ERRQUEUE.
type kernelErrorQueue struct {
	rc syscall.RawConn
}

func newErrorQueue(pc net.PacketConn) (ErrorQueue, error) {
	sc, ok := pc.(syscall.Conn)
	if !ok {
		return NoErrorQueue, nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}
	return &kernelErrorQueue{rc: rc}, nil
}

func (q *kernelErrorQueue) Drain() (DrainResult, error) {
	oob := make([]byte, unix.CmsgSpace(sizeofSockExtendedErr+unix.SizeofSockaddrInet6))

	var (
		oobn    int
		recvErr error
	)
	err := q.rc.Read(func(fd uintptr) bool {
		_, oobn, _, _, recvErr = unix.Recvmsg(int(fd), nil, oob, unix.MSG_ERRQUEUE|unix.MSG_DONTWAIT)
		// Never wait for readability: an empty queue is an answer.
		return true
	})
	if err != nil || recvErr != nil {
		return QueueEmpty, nil
	}
	return DrainedEntry, deferredError(oob[:oobn])
}

// deferredError decodes the errno of a sock_extended_err control message.
func deferredError(oob []byte) error {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		v4 := m.Header.Level == unix.SOL_IP && m.Header.Type == unix.IP_RECVERR
		v6 := m.Header.Level == unix.SOL_IPV6 && m.Header.Type == unix.IPV6_RECVERR
		if !v4 && !v6 || len(m.Data) < sizeofSockExtendedErr {
			continue
		}
		// ee_errno is the first field of struct sock_extended_err.
		return syscall.Errno(binary.NativeEndian.Uint32(m.Data[0:4]))
	}
	return nil
}
