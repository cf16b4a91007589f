package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/receiptsplit/internal/auth"
	"github.com/mmynk/receiptsplit/pkg/api"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for validated owner claims.
	ClaimsKey contextKey = "owner_claims"
	// DeviceIDKey is the context key for the caller's device id.
	DeviceIDKey contextKey = "device_id"
)

// GetClaims extracts the owner claims from the context.
// Returns nil if the caller presented no valid owner token.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// GetDeviceID extracts the caller's device id from the context.
// Returns empty string if not found.
func GetDeviceID(ctx context.Context) string {
	deviceID, _ := ctx.Value(DeviceIDKey).(string)
	return deviceID
}

// WithClaims returns a context carrying claims. Used by tests.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// OwnerAuth returns a middleware that validates owner tokens if present, but
// allows requests without one: most procedures are open to every participant
// and the service decides per call whether ownership is required.
// It also copies the device id header into the context.
func OwnerAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if deviceID := strings.TrimSpace(req.Header().Get(api.HeaderDeviceID)); deviceID != "" {
				ctx = context.WithValue(ctx, DeviceIDKey, deviceID)
			}

			// Extract Authorization header
			authHeader := req.Header().Get(api.HeaderAuth)
			if authHeader != "" {
				// Parse Bearer token
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					// Validate token (ignore errors - the service reports
					// missing ownership where it matters)
					claims, err := jwtManager.Validate(parts[1])
					if err == nil {
						ctx = context.WithValue(ctx, ClaimsKey, claims)
					}
				}
			}

			// Call the next handler (with or without owner context)
			return next(ctx, req)
		}
	}
}
