package stun

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Client is a simple STUN UDP client.
type Client struct {
	// Timeout is the per-transaction deadline used if ctx has no deadline.
	Timeout time.Duration

	// Retries controls how many times to retransmit the same request on timeout.
	Retries int

	// RTO is the initial retransmission timeout.
	RTO time.Duration
}

// Binding is the result of a successful binding transaction.
type Binding struct {
	// Mapped is the transport address the server observed.
	Mapped MappedAddress

	// XOR is true when the address came from XOR-MAPPED-ADDRESS.
	XOR bool

	// Software is the server's SOFTWARE attribute, if any.
	Software string

	// RTT is measured from the last transmission to the response.
	RTT time.Duration
}

// NewClient returns a Client with sensible defaults.
func NewClient() *Client {
	return &Client{
		Timeout: 3 * time.Second,
		Retries: 6,
		RTO:     250 * time.Millisecond,
	}
}

// BindingRequest sends a Binding Request to serverAddr, e.g.
// "stun.example.org:3478", and returns the public mapped address.
func (c *Client) BindingRequest(ctx context.Context, serverAddr string) (MappedAddress, error) {
	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return MappedAddress{}, err
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return MappedAddress{}, err
	}
	defer conn.Close()

	b, err := c.Bind(ctx, conn)
	if err != nil {
		return MappedAddress{}, err
	}
	return b.Mapped, nil
}

// Bind performs a Binding transaction over conn, which must be connected
// to the server (DialUDP).
func (c *Client) Bind(ctx context.Context, conn *net.UDPConn) (*Binding, error) {
	tid, err := NewTransactionID()
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, conn, NewBindingRequest(tid))
}

// BindTo performs a Binding transaction with server over an unconnected
// conn. Replies from other sources are ignored, so one local socket can
// query several servers.
func (c *Client) BindTo(ctx context.Context, conn *net.UDPConn, server *net.UDPAddr) (*Binding, error) {
	tid, err := NewTransactionID()
	if err != nil {
		return nil, err
	}
	return c.do(ctx, conn, server, NewBindingRequest(tid))
}

// Do sends req over conn, retransmitting with exponential backoff, and
// decodes the matching Binding success response.
func (c *Client) Do(ctx context.Context, conn *net.UDPConn, req *Message) (*Binding, error) {
	return c.do(ctx, conn, nil, req)
}

// do runs one transaction. A nil server means conn is connected.
func (c *Client) do(ctx context.Context, conn *net.UDPConn, server *net.UDPAddr, req *Message) (*Binding, error) {
	reqBytes := req.Marshal()
	if reqBytes == nil {
		return nil, ErrMessageTooLarge
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(c.Timeout)
	}

	rto := c.RTO
	buf := make([]byte, 1500)

	for attempt := 0; attempt <= c.Retries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sent := time.Now()
		var err error
		if server == nil {
			_, err = conn.Write(reqBytes)
		} else {
			_, err = conn.WriteToUDP(reqBytes, server)
		}
		if err != nil {
			return nil, err
		}

		waitUntil := sent.Add(rto)
		if waitUntil.After(deadline) {
			waitUntil = deadline
		}
		_ = conn.SetReadDeadline(waitUntil)

		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					break
				}
				return nil, err
			}
			if server != nil && !sameAddr(from, server) {
				continue
			}

			resp, err := Parse(buf[:n])
			if err != nil || resp.Cookie != req.Cookie || resp.TransactionID != req.TransactionID {
				continue
			}
			return decodeBinding(resp, time.Since(sent))
		}

		if !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}
		rto *= 2
	}

	return nil, ErrTimeout
}

func sameAddr(a, b *net.UDPAddr) bool {
	return a != nil && a.Port == b.Port && a.IP.Equal(b.IP)
}

// decodeBinding turns a matched response into a Binding.
func decodeBinding(resp *Message, rtt time.Duration) (*Binding, error) {
	if resp.Class == ClassErrorResponse {
		if a, ok := resp.GetAttribute(AttrErrorCode); ok {
			if code, reason, err := DecodeErrorCode(a); err == nil {
				return nil, fmt.Errorf("%w: %d %s", ErrErrorResponse, code, reason)
			}
		}
		return nil, ErrErrorResponse
	}
	if resp.Method != MethodBinding || resp.Class != ClassSuccessResponse {
		return nil, ErrNotSTUN
	}

	b := &Binding{RTT: rtt}
	if a, ok := resp.GetAttribute(AttrSoftware); ok {
		b.Software = string(a.Value)
	}
	_, b.XOR = resp.GetAttribute(AttrXORMappedAddress)

	mapped, err := FindMappedAddress(resp)
	if err != nil {
		return nil, err
	}
	b.Mapped = mapped
	return b, nil
}
