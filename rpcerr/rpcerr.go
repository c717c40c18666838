// Package rpcerr defines the error model shared by every layer of the
// RPC runtime: codec, channels, dispatcher, and the server/client loops.
//
// Every error that can cross a component boundary is classified as
// fatal, connection-fatal, or recoverable (see the runtime's design
// notes). The classification travels with the error itself via the
// Critical flag instead of living in a side table, so a caller who only
// has an error value in hand can still decide whether to keep looping.
package rpcerr

import (
	"errors"
	"fmt"
)

// Error wraps an underlying error with the critical/non-critical
// classification a socket-layer failure carries in this runtime.
//
// Critical errors leave the socket or loop that produced them unusable
// and force the owning component to shut down. Non-critical errors
// (timeouts, malformed packets, protocol violations) are logged and the
// loop keeps running.
type Error struct {
	Err      error
	Critical bool
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds a classified Error around err. A nil err returns nil.
func Wrap(err error, critical bool) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, Critical: critical}
}

// IsCritical reports whether err (or anything it wraps) is a critical
// rpcerr.Error.
func IsCritical(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Critical
	}
	return false
}

// Sentinel errors from the codec (C1). These are always non-critical:
// they indicate a malformed message, not an unusable transport.
var (
	ErrMalformedTag          = errors.New("rpcerr: nullability tag not in {0,1}")
	ErrMalformedLength       = errors.New("rpcerr: negative array or string length")
	ErrUnexpectedEnd         = errors.New("rpcerr: not enough bytes remaining")
	ErrInvalidText           = errors.New("rpcerr: invalid UTF-8 text")
	ErrNullPrimitive         = errors.New("rpcerr: null tag on a primitive slot")
	ErrDepthExceeded         = errors.New("rpcerr: recursion depth exceeded")
	ErrUnconstructibleRecord = errors.New("rpcerr: no zero-argument constructor for record")
)

// Sentinel errors from the TCP/UDP channels (C2/C3).
var (
	ErrNotConnected     = errors.New("rpcerr: channel not connected")
	ErrChannelClosed    = errors.New("rpcerr: channel closed")
	ErrShortHeader      = errors.New("rpcerr: short frame header")
	ErrFrameTooLarge    = errors.New("rpcerr: frame exceeds maximum size")
	ErrTimeout          = errors.New("rpcerr: timed out waiting for packet")
	ErrUnexpectedPacket = errors.New("rpcerr: unexpected packet tag")
	ErrOutOfBounds      = errors.New("rpcerr: packet index/size out of bounds")
)

// Sentinel errors from the dispatcher (C4).
var (
	ErrUnknownOperation  = errors.New("rpcerr: unknown operation")
	ErrInvocationFailure = errors.New("rpcerr: operation invocation failed")
)

// Malformedf wraps one of the codec sentinels with extra context,
// keeping errors.Is(err, sentinel) working via %w.
func Malformedf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}
