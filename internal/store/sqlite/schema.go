package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied idempotently on startup and by the migrate command.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS contacts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_low_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	user_high_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_low_id, user_high_id),
	CHECK (user_low_id < user_high_id)
);

CREATE TABLE IF NOT EXISTS chat_groups (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	owner_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id  INTEGER NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
	user_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	text       TEXT NOT NULL,
	sender_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	contact_id INTEGER REFERENCES contacts(id) ON DELETE CASCADE,
	group_id   INTEGER REFERENCES chat_groups(id) ON DELETE CASCADE,
	sent_at    DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	CHECK ((contact_id IS NULL) <> (group_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_messages_contact ON messages(contact_id, sent_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id, sent_at DESC);
CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);
`

// ApplySchema creates all tables and indexes if they do not exist yet.
// It matches the setup signature of NewWithSetup so tests can use it directly.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Migrate applies the schema to the open database.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
