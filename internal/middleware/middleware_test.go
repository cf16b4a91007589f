package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/receiptsplit/internal/auth"
	"github.com/mmynk/receiptsplit/internal/metrics"
	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/pkg/api"
)

// capture returns a UnaryFunc that records the context it was called with.
func capture(got *context.Context, err error) connect.UnaryFunc {
	return func(ctx context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
		*got = ctx
		return nil, err
	}
}

func TestOwnerAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate("s1", models.Participant{ID: "p1", Name: "Alice", Role: models.RoleOwner})
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		deviceID   string
		wantOwner  bool
	}{
		{name: "no credentials"},
		{name: "device only", deviceID: "dev-1"},
		{name: "valid owner token", authHeader: "Bearer " + token, deviceID: "dev-1", wantOwner: true},
		{name: "garbage token is ignored", authHeader: "Bearer not-a-jwt", deviceID: "dev-1"},
		{name: "wrong scheme", authHeader: "Basic " + token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(&api.GetSessionRequest{SessionID: "s1"})
			if tt.authHeader != "" {
				req.Header().Set(api.HeaderAuth, tt.authHeader)
			}
			if tt.deviceID != "" {
				req.Header().Set(api.HeaderDeviceID, tt.deviceID)
			}

			var ctx context.Context
			_, err := OwnerAuth(jwtManager)(capture(&ctx, nil))(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, tt.deviceID, GetDeviceID(ctx))
			claims := GetClaims(ctx)
			if !tt.wantOwner {
				assert.Nil(t, claims)
				return
			}
			require.NotNil(t, claims)
			assert.Equal(t, "s1", claims.SessionID)
			assert.Equal(t, "p1", claims.ParticipantID)
		})
	}
}

func TestMetricsInterceptor(t *testing.T) {
	m := metrics.NewServer(prometheus.NewRegistry())
	req := connect.NewRequest(&api.GetSessionRequest{SessionID: "s1"})
	procedure := req.Spec().Procedure

	var ctx context.Context
	_, err := MetricsInterceptor(m)(capture(&ctx, nil))(context.Background(), req)
	require.NoError(t, err)

	notFound := connect.NewError(connect.CodeNotFound, errors.New("session not found"))
	_, err = MetricsInterceptor(m)(capture(&ctx, notFound))(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCs.WithLabelValues(procedure, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCs.WithLabelValues(procedure, "not_found")))
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	req := connect.NewRequest(&api.GetSessionRequest{SessionID: "s1"})
	failure := connect.NewError(connect.CodeInternal, errors.New("disk full"))

	var ctx context.Context
	_, err := LoggingInterceptor()(capture(&ctx, failure))(WithClaims(context.Background(), &auth.Claims{SessionID: "s1"}), req)
	assert.ErrorIs(t, err, failure)
	assert.NotNil(t, GetClaims(ctx))
}

func TestCallerFault(t *testing.T) {
	assert.True(t, callerFault(connect.CodeResourceExhausted))
	assert.True(t, callerFault(connect.CodeFailedPrecondition))
	assert.False(t, callerFault(connect.CodeInternal))
	assert.False(t, callerFault(connect.CodeUnavailable))
}
