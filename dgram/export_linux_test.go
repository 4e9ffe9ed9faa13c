//go:build linux

package dgram

// kernel ancillary data decoders
var TestDeferredError = deferredError
var TestReplySource = replySource

// SizeofSockExtendedErr is sizeof(struct sock_extended_err).
const SizeofSockExtendedErr = sizeofSockExtendedErr
