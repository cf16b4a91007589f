// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/receiptsplit/internal/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// MutateFunc edits a session inside a store transaction. Returning an error
// aborts the transaction and leaves the session untouched.
type MutateFunc func(s *models.Session) error

// Store defines the interface for session storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateSession persists a new session created from deviceID.
	// The ID, CreatedAt and LastUpdated fields are populated by the store,
	// as are any missing item, participant and charge ids.
	CreateSession(ctx context.Context, session *models.Session, deviceID string) error

	// GetSession retrieves a session by its ID.
	// Returns ErrNotFound if the session does not exist.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// UpdateSession applies fn to the current session atomically, advances
	// its LastUpdated cursor and returns the stored result.
	UpdateSession(ctx context.Context, sessionID string, fn MutateFunc) (*models.Session, error)

	// CountSessionsCreatedBy returns how many sessions deviceID has created.
	CountSessionsCreatedBy(ctx context.Context, deviceID string) (int, error)

	// BindDevice records that deviceID acts as participantID in the session.
	BindDevice(ctx context.Context, sessionID, participantID, deviceID string) error

	// DeviceParticipant returns the participant deviceID is bound to, or ""
	// when the device has not joined or selected anyone.
	DeviceParticipant(ctx context.Context, sessionID, deviceID string) (string, error)

	// Close releases any resources held by the store.
	Close() error
}
