// Package middleware implements the server-side handler chain that
// wraps the dispatcher: logging, timeouts, retries, and rate limiting.
// It carries the teacher's Chain/HandlerFunc shape forward unchanged,
// only retargeting it from the fixed RPCMessage envelope to the
// descriptor-driven envelope.Request/envelope.Response pair, and from
// an in-band Error string to an idiomatic Go error return.
package middleware

import (
	"context"

	"github.com/vladaeloaiei/byteremote/envelope"
)

// HandlerFunc processes one decoded request and produces a response
// or an error.
type HandlerFunc func(ctx context.Context, req *envelope.Request) (envelope.Response, error)

// Middleware wraps a HandlerFunc with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into the onion model:
// Chain(A, B, C)(handler) → A(B(C(handler))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
