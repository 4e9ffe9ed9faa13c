package stund

// This file exposes unexported functions for black-box tests
// in package stund_test. It is compiled only during `go test`.

// TestMinMessageSize returns the smallest MaxMessageSize Listen accepts
// for a SOFTWARE value.
var TestMinMessageSize = minMessageSize
