// Package middleware provides interceptors for pubkit request dispatch.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/broady/pubkit"
)

// LoggingInterceptor creates an interceptor that logs requests using slog.
// It logs the start and end of each request, including duration and the
// failure category. Cancelled requests are logged at info level.
func LoggingInterceptor(logger *slog.Logger) pubkit.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, req *pubkit.Request, onResponse pubkit.ResponseFunc, next pubkit.SendFunc) pubkit.Call {
		start := time.Now()
		op := req.Operation.String()

		attrs := []any{
			slog.String("operation", op),
			slog.String("method", req.Method),
			slog.String("path", req.URL),
		}
		if info, ok := pubkit.CallInfoFromContext(ctx); ok && info.RequestID != "" {
			attrs = append(attrs, slog.String("request_id", info.RequestID))
		}
		logger.InfoContext(ctx, "request started", attrs...)

		logged := func(status pubkit.Status, payload []byte) {
			duration := time.Since(start)
			switch {
			case !status.Error:
				logger.InfoContext(ctx, "request completed",
					slog.String("operation", op),
					slog.Int("status", status.StatusCode),
					slog.Duration("duration", duration),
				)
			case status.Category == pubkit.CategoryCancelled:
				logger.InfoContext(ctx, "request cancelled",
					slog.String("operation", op),
					slog.Duration("duration", duration),
				)
			default:
				logger.ErrorContext(ctx, "request failed",
					slog.String("operation", op),
					slog.String("category", string(status.Category)),
					slog.Int("status", status.StatusCode),
					slog.Duration("duration", duration),
					slog.Any("error", status.Err),
				)
			}
			onResponse(status, payload)
		}

		return next(ctx, req, logged)
	}
}
