package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/vladaeloaiei/byteremote/envelope"
	"github.com/vladaeloaiei/byteremote/rpcerr"
)

var errRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware throttles calls through the wrapped handler
// using a token-bucket limiter, kept verbatim from the teacher's
// choice of golang.org/x/time/rate.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) (envelope.Response, error) {
			if !limiter.Allow() {
				return envelope.Response{}, rpcerr.Wrap(errRateLimited, false)
			}
			return next(ctx, req)
		}
	}
}
