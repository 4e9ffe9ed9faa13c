//go:build linux

package dgram

import (
	"net"

	"golang.org/x/sys/unix"
)

// inPktinfoLen is sizeof(struct in_pktinfo): ifindex, spec_dst, addr.
const inPktinfoLen = 12

// replySource returns ipi_spec_dst from an IP_PKTINFO control message.
// The kernel fills it with the local address replies should come from,
// which is the interface address when the datagram was broadcast.
func replySource(oob []byte) net.IP {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil
	}
	for _, m := range msgs {
		if m.Header.Level != unix.IPPROTO_IP || m.Header.Type != unix.IP_PKTINFO || len(m.Data) < inPktinfoLen {
			continue
		}
		ip := net.IPv4(m.Data[4], m.Data[5], m.Data[6], m.Data[7])
		if ip.IsUnspecified() {
			return nil
		}
		return ip
	}
	return nil
}
