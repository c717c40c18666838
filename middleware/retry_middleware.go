package middleware

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vladaeloaiei/byteremote/envelope"
	"github.com/vladaeloaiei/byteremote/rpcerr"
)

// RetryMiddleware retries the wrapped handler with exponential backoff
// when it fails with a timeout (rpcerr.ErrTimeout or
// context.DeadlineExceeded), up to maxRetries extra attempts, and
// returns immediately on any other error.
func RetryMiddleware(logger *zap.Logger, maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) (envelope.Response, error) {
			resp, err := next(ctx, req)
			for i := 0; i < maxRetries && isRetryable(err); i++ {
				logger.Info("retrying rpc call",
					zap.String("operation", req.Operation),
					zap.Int("attempt", i+1),
					zap.Error(err),
				)
				time.Sleep(baseDelay * time.Duration(1<<i))
				resp, err = next(ctx, req)
			}
			return resp, err
		}
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, rpcerr.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
