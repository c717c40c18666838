package middleware

import (
	"context"
	"time"

	"github.com/vladaeloaiei/byteremote/envelope"
	"github.com/vladaeloaiei/byteremote/rpcerr"
)

// TimeOutMiddleware bounds how long the wrapped handler may run.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) (envelope.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp envelope.Response
				err  error
			}
			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, req)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return envelope.Response{}, rpcerr.Wrap(rpcerr.ErrTimeout, false)
			}
		}
	}
}
