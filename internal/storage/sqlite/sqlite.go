// Package sqlite provides a SQLite-backed implementation of the storage.Store
// interface, plus a key/value LocalStore for client devices.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func open(dbPath string) (*sql.DB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps PRAGMAs in effect.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession persists a new session to the database.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session, deviceID string) error {
	// Generate IDs if not set
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt == 0 {
		session.CreatedAt = time.Now().Unix()
	}
	if session.Status == "" {
		session.Status = models.StatusAssigning
	}
	if session.HostStep == 0 {
		session.HostStep = models.MinHostStep
	}
	if session.Assignments == nil {
		session.Assignments = models.Assignments{}
	}
	fillIDs(session)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const revision = 1
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, status, host_step, revision, last_updated_by, subtotal, total, number_format, created_at, created_by_device)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Status, session.HostStep, revision, session.LastUpdatedBy,
		session.Subtotal, session.Total, session.NumberFormat, session.CreatedAt, deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := insertChildren(ctx, tx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	session.LastUpdated = cursor(revision)
	return nil
}

// GetSession retrieves a session by ID, including all of its children.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, _, err := loadSession(ctx, s.db, sessionID)
	return session, err
}

// UpdateSession runs fn against the stored session inside a transaction and
// rewrites the session with an advanced revision.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sessionID string, fn storage.MutateFunc) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	session, revision, err := loadSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := fn(session); err != nil {
		return nil, err
	}
	fillIDs(session)
	revision++

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, host_step = ?, revision = ?, last_updated_by = ?, subtotal = ?, total = ?, number_format = ?
		 WHERE id = ?`,
		session.Status, session.HostStep, revision, session.LastUpdatedBy,
		session.Subtotal, session.Total, session.NumberFormat, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	for _, table := range []string{"items", "participants", "assignments", "charges"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := insertChildren(ctx, tx, session); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	session.LastUpdated = cursor(revision)
	return session, nil
}

// CountSessionsCreatedBy counts the sessions created from deviceID.
func (s *SQLiteStore) CountSessionsCreatedBy(ctx context.Context, deviceID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE created_by_device = ?",
		deviceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// BindDevice records which participant a device acts as.
func (s *SQLiteStore) BindDevice(ctx context.Context, sessionID, participantID, deviceID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_bindings (session_id, device_id, participant_id) VALUES (?, ?, ?)
		 ON CONFLICT (session_id, device_id) DO UPDATE SET participant_id = excluded.participant_id`,
		sessionID, deviceID, participantID,
	)
	if err != nil {
		return fmt.Errorf("failed to bind device: %w", err)
	}
	return nil
}

// DeviceParticipant returns the participant bound to deviceID.
func (s *SQLiteStore) DeviceParticipant(ctx context.Context, sessionID, deviceID string) (string, error) {
	var participantID string
	err := s.db.QueryRowContext(ctx,
		"SELECT participant_id FROM device_bindings WHERE session_id = ? AND device_id = ?",
		sessionID, deviceID,
	).Scan(&participantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get device binding: %w", err)
	}
	return participantID, nil
}

// loadSession reads a session and its revision.
func loadSession(ctx context.Context, q querier, sessionID string) (*models.Session, int64, error) {
	session := &models.Session{Assignments: models.Assignments{}}
	var revision int64
	err := q.QueryRowContext(ctx,
		`SELECT id, status, host_step, revision, last_updated_by, subtotal, total, number_format, created_at
		 FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&session.ID, &session.Status, &session.HostStep, &revision, &session.LastUpdatedBy,
		&session.Subtotal, &session.Total, &session.NumberFormat, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: %s", storage.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get session: %w", err)
	}
	session.LastUpdated = cursor(revision)

	// Get items
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, price, quantity, mode FROM items WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get items: %w", err)
	}
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Quantity, &it.Mode); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		session.Items = append(session.Items, it)
	}
	if err := closeRows(rows, "items"); err != nil {
		return nil, 0, err
	}

	// Get participants
	rows, err = q.QueryContext(ctx,
		"SELECT id, name, role FROM participants WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get participants: %w", err)
	}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Role); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan participant: %w", err)
		}
		session.Participants = append(session.Participants, p)
	}
	if err := closeRows(rows, "participants"); err != nil {
		return nil, 0, err
	}

	// Get assignments
	rows, err = q.QueryContext(ctx,
		"SELECT assignment_key, participant_id, quantity FROM assignments WHERE session_id = ? ORDER BY assignment_key, position",
		sessionID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get assignments: %w", err)
	}
	for rows.Next() {
		var key string
		var a models.Assignment
		if err := rows.Scan(&key, &a.ParticipantID, &a.Quantity); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan assignment: %w", err)
		}
		session.Assignments[key] = append(session.Assignments[key], a)
	}
	if err := closeRows(rows, "assignments"); err != nil {
		return nil, 0, err
	}

	// Get charges
	rows, err = q.QueryContext(ctx,
		"SELECT id, name, value, value_type, is_discount, distribution FROM charges WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get charges: %w", err)
	}
	for rows.Next() {
		var c models.Charge
		if err := rows.Scan(&c.ID, &c.Name, &c.Value, &c.ValueType, &c.IsDiscount, &c.Distribution); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan charge: %w", err)
		}
		session.Charges = append(session.Charges, c)
	}
	if err := closeRows(rows, "charges"); err != nil {
		return nil, 0, err
	}

	return session, revision, nil
}

// insertChildren writes items, participants, assignments and charges.
func insertChildren(ctx context.Context, tx *sql.Tx, session *models.Session) error {
	for i, it := range session.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO items (id, session_id, position, name, price, quantity, mode) VALUES (?, ?, ?, ?, ?, ?, ?)",
			it.ID, session.ID, i, it.Name, it.Price, it.Quantity, it.Mode,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	for i, p := range session.Participants {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO participants (id, session_id, position, name, role) VALUES (?, ?, ?, ?, ?)",
			p.ID, session.ID, i, p.Name, p.Role,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	for key, claims := range session.Assignments {
		for i, a := range claims {
			if a.Quantity <= 0 {
				continue
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO assignments (session_id, assignment_key, participant_id, position, quantity) VALUES (?, ?, ?, ?, ?)",
				session.ID, key, a.ParticipantID, i, a.Quantity,
			)
			if err != nil {
				return fmt.Errorf("failed to insert assignment: %w", err)
			}
		}
	}

	for i, c := range session.Charges {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO charges (id, session_id, position, name, value, value_type, is_discount, distribution) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			c.ID, session.ID, i, c.Name, c.Value, c.ValueType, c.IsDiscount, c.Distribution,
		)
		if err != nil {
			return fmt.Errorf("failed to insert charge: %w", err)
		}
	}

	return nil
}

// fillIDs assigns UUIDs to children created without one.
func fillIDs(session *models.Session) {
	for i := range session.Items {
		if session.Items[i].ID == "" {
			session.Items[i].ID = uuid.New().String()
		}
		if session.Items[i].Mode == "" {
			session.Items[i].Mode = models.ModeIndividual
		}
	}
	for i := range session.Participants {
		if session.Participants[i].ID == "" {
			session.Participants[i].ID = uuid.New().String()
		}
	}
	for i := range session.Charges {
		if session.Charges[i].ID == "" {
			session.Charges[i].ID = uuid.New().String()
		}
	}
}

func closeRows(rows *sql.Rows, what string) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate %s: %w", what, err)
	}
	return rows.Close()
}

// cursor renders a revision as the opaque LastUpdated value.
func cursor(revision int64) string {
	return "r" + strconv.FormatInt(revision, 10)
}
