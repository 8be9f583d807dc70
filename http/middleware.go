package http

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

type Middleware func(next Handler) Handler

// RecoverMiddleware turns a panic in next into an error wrapping ErrHandlerPanic.
func RecoverMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (res *Response, err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					res = nil
					err = fmt.Errorf("%w: %v\n%s", ErrHandlerPanic, recovered, debug.Stack())
				}
			}()

			return next(ctx, req)
		}
	}
}

// LoggerMiddleware logs one line per handled request.
func LoggerMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			res, err := next(ctx, req)

			attrs := []any{
				"method", req.Method,
				"path", req.Path,
				"duration", time.Since(start),
			}
			if res != nil {
				attrs = append(attrs, "status", res.Status)
			}
			if err != nil {
				logger.ErrorContext(ctx, "request failed", append(attrs, "error", err)...)
				return res, err
			}
			logger.DebugContext(ctx, "request served", attrs...)
			return res, err
		}
	}
}
