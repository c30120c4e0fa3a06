package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema on an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup so :memory: stays on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// translate maps driver constraint failures onto store sentinel errors.
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %v", store.ErrForeignKey, err)
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	default:
		return err
	}
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// DeleteUser removes a user. Contacts, memberships, owned groups and messages cascade.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user: %w", store.ErrNotFound)
	}
	return nil
}

// ==== ContactStore implementation ====

// CreateContact returns the contact between two users, creating it on first use.
func (s *SQLiteStore) CreateContact(ctx context.Context, userID, peerID int64) (*store.Contact, error) {
	low, high := userID, peerID
	if low > high {
		low, high = high, low
	}

	query := `
		INSERT INTO contacts (user_low_id, user_high_id)
		VALUES (?, ?)
		ON CONFLICT (user_low_id, user_high_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, low, high); err != nil {
		return nil, fmt.Errorf("insert contact: %w", translate(err))
	}

	var contact store.Contact
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_low_id, user_high_id, created_at
		FROM contacts
		WHERE user_low_id = ? AND user_high_id = ?
	`, low, high).Scan(&contact.ID, &contact.UserLowID, &contact.UserHighID, &contact.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query contact: %w", err)
	}
	return &contact, nil
}

// GetContact retrieves a contact by ID.
func (s *SQLiteStore) GetContact(ctx context.Context, id int64) (*store.Contact, error) {
	var contact store.Contact
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_low_id, user_high_id, created_at
		FROM contacts
		WHERE id = ?
	`, id).Scan(&contact.ID, &contact.UserLowID, &contact.UserHighID, &contact.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query contact: %w", err)
	}
	return &contact, nil
}

// ==== GroupStore implementation ====

// CreateGroup creates a group and adds the owner as a member in one transaction.
func (s *SQLiteStore) CreateGroup(ctx context.Context, name string, ownerID int64) (*store.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `INSERT INTO chat_groups (name, owner_id) VALUES (?, ?)`, name, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", translate(err))
	}
	groupID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`, groupID, ownerID); err != nil {
		return nil, fmt.Errorf("add owner to members: %w", translate(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetGroup(ctx, groupID)
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, id int64) (*store.Group, error) {
	var group store.Group
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at
		FROM chat_groups
		WHERE id = ?
	`, id).Scan(&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query group: %w", err)
	}
	return &group, nil
}

// AddGroupMember adds a user to a group.
func (s *SQLiteStore) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	query := `
		INSERT OR IGNORE INTO group_members (group_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("insert group member: %w", translate(err))
	}
	return nil
}

// RemoveGroupMember removes a user from a group.
func (s *SQLiteStore) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	query := `
		DELETE FROM group_members
		WHERE group_id = ? AND user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("delete group member: %w", err)
	}
	return nil
}
