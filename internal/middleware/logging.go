package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/receiptsplit/internal/metrics"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, calling device, ownership, duration and outcome.
// Refusals caused by the caller are logged at INFO; everything else that
// fails is logged at ERROR.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"device_id", GetDeviceID(ctx),
				"owner", GetClaims(ctx) != nil,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err == nil {
				slog.Debug("RPC ok", attrs...)
				return resp, nil
			}

			var connectErr *connect.Error
			if !errors.As(err, &connectErr) {
				slog.Error("RPC failed", append(attrs, "error", err)...)
				return resp, err
			}
			attrs = append(attrs, "code", connectErr.Code().String(), "error", connectErr.Message())
			if callerFault(connectErr.Code()) {
				slog.Info("RPC refused", attrs...)
			} else {
				slog.Error("RPC failed", attrs...)
			}
			return resp, err
		}
	}
}

func callerFault(code connect.Code) bool {
	switch code {
	case connect.CodeInvalidArgument, connect.CodeNotFound, connect.CodeUnauthenticated,
		connect.CodePermissionDenied, connect.CodeResourceExhausted, connect.CodeFailedPrecondition,
		connect.CodeAborted, connect.CodeCanceled:
		return true
	}
	return false
}

// MetricsInterceptor returns a Connect interceptor that counts RPCs by
// procedure and code and records their latency.
func MetricsInterceptor(m *metrics.Server) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			m.RPCs.WithLabelValues(procedure, code).Inc()
			m.RPCDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}
