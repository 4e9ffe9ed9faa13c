package stun

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// MappingBehavior is a coarse classification of how a NAT maps one local
// socket toward different servers.
type MappingBehavior string

const (
	MappingUnknown             MappingBehavior = "Unknown"
	MappingNone                MappingBehavior = "No NAT"
	MappingEndpointIndependent MappingBehavior = "Endpoint Independent"
	MappingAddressDependent    MappingBehavior = "Address/Port Dependent"
)

// ErrNoServers is returned by DetectMapping without servers.
var ErrNoServers = errors.New("stun: no servers to probe")

// MappingResult is the outcome of DetectMapping.
type MappingResult struct {
	Local    *net.UDPAddr
	Servers  []*net.UDPAddr
	Bindings []*Binding
	Behavior MappingBehavior
}

// DetectMapping binds against every server from the same unconnected
// socket and compares the mapped addresses. Telling endpoint independent
// from address dependent mapping needs at least two servers at different
// addresses.
func (c *Client) DetectMapping(ctx context.Context, conn *net.UDPConn, servers ...*net.UDPAddr) (*MappingResult, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}

	r := &MappingResult{
		Local:   conn.LocalAddr().(*net.UDPAddr),
		Servers: servers,
	}
	mapped := make([]MappedAddress, 0, len(servers))
	for _, srv := range servers {
		b, err := c.BindTo(ctx, conn, srv)
		if err != nil {
			return nil, fmt.Errorf("binding with %s: %w", srv, err)
		}
		r.Bindings = append(r.Bindings, b)
		mapped = append(mapped, b.Mapped)
	}

	r.Behavior = classifyMapping(r.Local, mapped)
	return r, nil
}

func classifyMapping(local *net.UDPAddr, mapped []MappedAddress) MappingBehavior {
	first := mapped[0]
	if first.Port == local.Port && first.IP.Equal(local.IP) {
		return MappingNone
	}
	if len(mapped) < 2 {
		return MappingUnknown
	}
	for _, m := range mapped[1:] {
		if m.Port != first.Port || !m.IP.Equal(first.IP) {
			return MappingAddressDependent
		}
	}
	return MappingEndpointIndependent
}
