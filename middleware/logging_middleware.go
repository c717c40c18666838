package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vladaeloaiei/byteremote/envelope"
)

// LoggingMiddleware logs every call's operation name, duration, and
// outcome through a zap.Logger, replacing the teacher's log.Printf
// calls with the structured logger the runtime's ambient stack uses
// everywhere else.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) (envelope.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			duration := time.Since(start)

			if err != nil {
				logger.Warn("rpc call failed",
					zap.String("operation", req.Operation),
					zap.Duration("duration", duration),
					zap.Error(err),
				)
				return resp, err
			}

			logger.Info("rpc call",
				zap.String("operation", req.Operation),
				zap.Duration("duration", duration),
			)
			return resp, nil
		}
	}
}
