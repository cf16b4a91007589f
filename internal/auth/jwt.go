package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmynk/receiptsplit/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("owner token required")
	ErrWrongSession = errors.New("token was issued for another session")
)

// JWTManager issues and validates owner credentials.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// Claims are the custom JWT claims of an owner credential.
type Claims struct {
	SessionID     string `json:"sid"`
	ParticipantID string `json:"pid"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager with the given secret and token duration.
// secretKey should be a strong random string (e.g., 32 bytes).
// tokenDuration is how long owner tokens remain valid; it should outlive the
// session TTL.
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Generate creates an owner token for the given session and owner participant.
func (m *JWTManager) Generate(sessionID string, owner models.Participant) (string, error) {
	now := m.now()
	claims := &Claims{
		SessionID:     sessionID,
		ParticipantID: owner.ID,
		Role:          string(models.RoleOwner),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate parses and validates a token, returning the claims if valid.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role != string(models.RoleOwner) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Authorize checks that claims grant ownership of sessionID.
func Authorize(claims *Claims, sessionID string) error {
	if claims == nil {
		return ErrMissingToken
	}
	if claims.SessionID != sessionID {
		return ErrWrongSession
	}
	return nil
}
