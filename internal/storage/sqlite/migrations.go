package sqlite

import "database/sql"

// schema contains the SQL statements to set up the session database.
// These run on startup to ensure tables exist.
// IMPORTANT: sessions must be created BEFORE child tables due to foreign key constraints.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    host_step INTEGER NOT NULL,
    revision INTEGER NOT NULL,
    last_updated_by TEXT NOT NULL DEFAULT '',
    subtotal REAL NOT NULL DEFAULT 0,
    total REAL NOT NULL DEFAULT 0,
    number_format TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    created_by_device TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS items (
    id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    price REAL NOT NULL,
    quantity INTEGER NOT NULL,
    mode TEXT NOT NULL,
    PRIMARY KEY (session_id, id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS participants (
    id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL,
    PRIMARY KEY (session_id, id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS assignments (
    session_id TEXT NOT NULL,
    assignment_key TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    quantity REAL NOT NULL,
    PRIMARY KEY (session_id, assignment_key, participant_id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS charges (
    id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    value REAL NOT NULL,
    value_type TEXT NOT NULL,
    is_discount INTEGER NOT NULL,
    distribution TEXT NOT NULL,
    PRIMARY KEY (session_id, id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS device_bindings (
    session_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    PRIMARY KEY (session_id, device_id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_items_session_id ON items(session_id);
CREATE INDEX IF NOT EXISTS idx_participants_session_id ON participants(session_id);
CREATE INDEX IF NOT EXISTS idx_assignments_session_id ON assignments(session_id);
CREATE INDEX IF NOT EXISTS idx_charges_session_id ON charges(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_created_by_device ON sessions(created_by_device);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
