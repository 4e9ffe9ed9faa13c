package stun_test

import (
	"net"
	"testing"

	pion "github.com/pion/stun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aethiopicuschan/stund/stun"
)

// These tests cross-check the codec against pion/stun, an independent
// implementation: pion builds the requests and decodes the responses.

func decodePion(t *testing.T, b []byte) *pion.Message {
	t.Helper()

	m := new(pion.Message)
	m.Raw = append(m.Raw[:0], b...)
	require.NoError(t, m.Decode())
	return m
}

func TestInterop_BindingWithPion(t *testing.T) {
	t.Parallel()

	req, err := pion.Build(pion.TransactionID, pion.BindingRequest, pion.Fingerprint)
	require.NoError(t, err)

	agent := stun.NewAgent(stun.AgentConfig{
		Usage:    stun.UsageAddSoftware | stun.UsageUseFingerprint,
		Software: "stund",
	})

	msg, status := agent.Validate(req.Raw)
	require.Equal(t, stun.ValidationSuccess, status)
	assert.True(t, msg.HasCookie())
	assert.Equal(t, stun.TransactionID(req.TransactionID), msg.TransactionID)

	src := &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 40000}
	resp := agent.InitResponse(msg)
	require.NoError(t, resp.AppendXORAddress(stun.AttrXORMappedAddress, src))

	buf := make([]byte, stun.MaxMessageSize)
	n, err := agent.Finish(resp, buf)
	require.NoError(t, err)

	got := decodePion(t, buf[:n])
	assert.Equal(t, pion.BindingSuccess, got.Type)
	assert.Equal(t, req.TransactionID, got.TransactionID)
	assert.NoError(t, pion.Fingerprint.Check(got))

	var xor pion.XORMappedAddress
	require.NoError(t, xor.GetFrom(got))
	assert.True(t, src.IP.Equal(xor.IP))
	assert.Equal(t, src.Port, xor.Port)

	var sw pion.Software
	require.NoError(t, sw.GetFrom(got))
	assert.Equal(t, "stund", sw.String())
}

func TestInterop_XORAddressIPv6WithPion(t *testing.T) {
	t.Parallel()

	req, err := pion.Build(pion.TransactionID, pion.BindingRequest)
	require.NoError(t, err)

	agent := stun.NewAgent(stun.AgentConfig{})
	msg, status := agent.Validate(req.Raw)
	require.Equal(t, stun.ValidationSuccess, status)

	src := &net.UDPAddr{IP: net.ParseIP("2001:db8:1::42"), Port: 51000}
	resp := agent.InitResponse(msg)
	require.NoError(t, resp.AppendXORAddress(stun.AttrXORMappedAddress, src))

	buf := make([]byte, 256)
	n, err := agent.Finish(resp, buf)
	require.NoError(t, err)

	var xor pion.XORMappedAddress
	require.NoError(t, xor.GetFrom(decodePion(t, buf[:n])))
	assert.True(t, src.IP.Equal(xor.IP))
	assert.Equal(t, src.Port, xor.Port)
}

func TestInterop_UnknownAttributesWithPion(t *testing.T) {
	t.Parallel()

	req, err := pion.Build(pion.TransactionID, pion.BindingRequest)
	require.NoError(t, err)
	req.Add(pion.AttrType(0x0024), []byte{0, 0, 0, 1})
	req.Add(pion.AttrType(0x0031), []byte{0, 0, 0, 2})
	req.Add(pion.AttrType(0x8030), []byte{0, 0, 0, 3})

	agent := stun.NewAgent(stun.AgentConfig{})
	msg, status := agent.Validate(req.Raw)
	require.Equal(t, stun.ValidationUnknownRequestAttribute, status)

	buf := make([]byte, 256)
	n, err := agent.Finish(agent.BuildUnknownAttributesError(msg), buf)
	require.NoError(t, err)

	got := decodePion(t, buf[:n])
	assert.Equal(t, pion.BindingError, got.Type)

	var code pion.ErrorCodeAttribute
	require.NoError(t, code.GetFrom(got))
	assert.Equal(t, pion.CodeUnknownAttribute, code.Code)

	// Each entry is a 16-bit type, padded to a 4-byte boundary.
	raw, err := got.Get(pion.AttrUnknownAttributes)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x24, 0x00, 0x31}, raw)
}

func TestInterop_BadRequestWithPion(t *testing.T) {
	t.Parallel()

	req, err := pion.Build(pion.TransactionID, pion.NewType(pion.MethodAllocate, pion.ClassRequest))
	require.NoError(t, err)

	agent := stun.NewAgent(stun.AgentConfig{})
	msg, status := agent.Validate(req.Raw)
	require.Equal(t, stun.ValidationSuccess, status)

	buf := make([]byte, 256)
	n, err := agent.Finish(agent.InitError(msg, stun.CodeBadRequest), buf)
	require.NoError(t, err)

	got := decodePion(t, buf[:n])
	assert.Equal(t, pion.MethodAllocate, got.Type.Method)
	assert.Equal(t, pion.ClassErrorResponse, got.Type.Class)

	var code pion.ErrorCodeAttribute
	require.NoError(t, code.GetFrom(got))
	assert.Equal(t, pion.CodeBadRequest, code.Code)
}

func TestInterop_ParsePionRequest(t *testing.T) {
	t.Parallel()

	req, err := pion.Build(pion.TransactionID, pion.BindingRequest, pion.NewSoftware("pion"), pion.Fingerprint)
	require.NoError(t, err)

	msg, err := stun.Parse(req.Raw)
	require.NoError(t, err)

	assert.Equal(t, stun.MethodBinding, msg.Method)
	assert.True(t, msg.IsRequest())
	sw, ok := msg.GetAttribute(stun.AttrSoftware)
	assert.True(t, ok)
	assert.Equal(t, "pion", string(sw.Value))
}
