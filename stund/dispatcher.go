package stund

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aethiopicuschan/stund/dgram"
	"github.com/aethiopicuschan/stund/stun"
)

// Transport moves datagrams for a Dispatcher. *dgram.Conn implements it.
type Transport interface {
	Receive() (*dgram.Datagram, error)
	Send(out *dgram.Datagram) (int, error)
}

// Dispatcher handles one request/response exchange per Process call.
type Dispatcher struct {
	conn  Transport
	agent *stun.Agent
	log   logrus.FieldLogger
}

// NewDispatcher returns a Dispatcher answering requests received on conn.
// A nil logger uses the logrus standard logger.
func NewDispatcher(conn Transport, agent *stun.Agent, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{conn: conn, agent: agent, log: log}
}

// Process receives one datagram and answers it.
//
// The response is encoded into the receive buffer and sent back to the
// source from the address the request arrived on. Datagrams that get no
// reply return an error wrapping ErrDropped. Receive and send failures
// are returned as reported by the transport.
func (d *Dispatcher) Process() error {
	in, err := d.conn.Receive()
	if err != nil {
		return err
	}

	resp, err := d.build(in)
	if err != nil {
		return err
	}

	buf := in.Buffer()
	n, err := d.agent.Finish(resp, buf)
	if err != nil {
		return fmt.Errorf("stund: encode response to %s: %w", in.Peer, err)
	}

	sent, err := d.conn.Send(in.Reply(buf[:n]))
	if err != nil {
		return err
	}
	if sent < n {
		return fmt.Errorf("%w: %d of %d bytes to %s", ErrShortWrite, sent, n, in.Peer)
	}

	d.log.WithFields(logrus.Fields{
		"function": "Process",
		"peer":     in.Peer.String(),
		"response": resp.String(),
		"bytes":    n,
	}).Debug("Answered request")
	return nil
}

// build decides the response to in. It returns ErrDropped when the
// datagram must not be answered.
func (d *Dispatcher) build(in *dgram.Datagram) (*stun.Message, error) {
	req, status := d.agent.Validate(in.Payload)
	switch status {
	case stun.ValidationSuccess:
	case stun.ValidationUnknownRequestAttribute:
		return d.agent.BuildUnknownAttributesError(req), nil
	default:
		return nil, fmt.Errorf("%w: %s message from %s", ErrDropped, status, in.Peer)
	}

	if !req.IsRequest() {
		return nil, fmt.Errorf("%w: %s from %s is not a request", ErrDropped, req, in.Peer)
	}
	if req.Method != stun.MethodBinding {
		return d.agent.InitError(req, stun.CodeBadRequest), nil
	}

	resp := d.agent.InitResponse(req)
	var err error
	if req.HasCookie() {
		err = resp.AppendXORAddress(stun.AttrXORMappedAddress, in.Peer)
	} else {
		err = resp.AppendAddress(stun.AttrMappedAddress, in.Peer)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %w", ErrDropped, in.Peer, err)
	}
	return resp, nil
}
