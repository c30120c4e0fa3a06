package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const messageColumns = `id, text, sender_id, contact_id, group_id, sent_at, updated_at`

// targetColumn returns the messages column holding the target id.
func targetColumn(target store.RoomTarget) (string, error) {
	switch target.Kind {
	case store.RoomKindDirect:
		return "contact_id", nil
	case store.RoomKindGroup:
		return "group_id", nil
	default:
		return "", fmt.Errorf("unknown room kind %q", target.Kind)
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg       store.Message
		contactID sql.NullInt64
		groupID   sql.NullInt64
	)
	if err := row.Scan(&msg.ID, &msg.Text, &msg.SenderID, &contactID, &groupID, &msg.SentAt, &msg.UpdatedAt); err != nil {
		return nil, err
	}
	switch {
	case contactID.Valid:
		msg.Target = store.DirectTarget(contactID.Int64)
	case groupID.Valid:
		msg.Target = store.GroupTarget(groupID.Int64)
	}
	return &msg, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message to storage.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	var contactID, groupID sql.NullInt64
	switch msg.Target.Kind {
	case store.RoomKindDirect:
		contactID = sql.NullInt64{Int64: msg.Target.ID, Valid: true}
	case store.RoomKindGroup:
		groupID = sql.NullInt64{Int64: msg.Target.ID, Valid: true}
	default:
		return fmt.Errorf("unknown room kind %q", msg.Target.Kind)
	}

	query := `
		INSERT INTO messages (text, sender_id, contact_id, group_id, sent_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.Text, msg.SenderID, contactID, groupID, msg.SentAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// FindMessages retrieves messages of one conversation with offset pagination.
func (s *SQLiteStore) FindMessages(ctx context.Context, target store.RoomTarget, page store.Page) ([]*store.Message, error) {
	column, err := targetColumn(target)
	if err != nil {
		return nil, err
	}
	if page.Take <= 0 {
		return []*store.Message{}, nil
	}
	if page.Skip < 0 {
		page.Skip = 0
	}

	order := "DESC"
	if page.Order == store.OldestFirst {
		order = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM messages
		WHERE %s = ?
		ORDER BY sent_at %s, id %s
		LIMIT ? OFFSET ?
	`, messageColumns, column, order, order)

	rows, err := s.db.QueryContext(ctx, query, target.ID, page.Take, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, page.Take)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// UpdateMessage replaces the text of a message scoped to its sender and conversation.
// Concurrent updates are last-write-wins; the returned row is the one this call wrote.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, id, senderID int64, target store.RoomTarget, text string) (*store.Message, error) {
	column, err := targetColumn(target)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	query := fmt.Sprintf(`
		UPDATE messages
		SET text = ?, updated_at = ?
		WHERE id = ? AND sender_id = ? AND %s = ?
	`, column)
	result, err := tx.ExecContext(ctx, query, text, nowUTC(), id, senderID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("message: %w", store.ErrNotFound)
	}

	msg, err := scanMessage(tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("query updated message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return msg, nil
}

// DeleteMessages removes the ids owned by senderID in target. Foreign or unknown ids are skipped.
func (s *SQLiteStore) DeleteMessages(ctx context.Context, ids []int64, senderID int64, target store.RoomTarget) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}
	column, err := targetColumn(target)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+2)
	args = append(args, senderID, target.ID)
	for _, id := range ids {
		args = append(args, id)
	}

	selectQuery := fmt.Sprintf(`
		SELECT id FROM messages
		WHERE sender_id = ? AND %s = ? AND id IN (%s)
		ORDER BY id ASC
	`, column, placeholders)
	rows, err := tx.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query owned messages: %w", err)
	}
	owned := make([]int64, 0, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan message id: %w", err)
		}
		owned = append(owned, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owned messages: %w", err)
	}

	if len(owned) == 0 {
		return owned, nil
	}

	deleteArgs := make([]any, 0, len(owned))
	for _, id := range owned {
		deleteArgs = append(deleteArgs, id)
	}
	deleteQuery := fmt.Sprintf(`DELETE FROM messages WHERE id IN (%s)`,
		strings.TrimSuffix(strings.Repeat("?,", len(owned)), ","))
	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return owned, nil
}

// IsRoomMember checks whether the user belongs to the contact pair or group.
func (s *SQLiteStore) IsRoomMember(ctx context.Context, userID int64, target store.RoomTarget) (bool, error) {
	var query string
	var args []any

	switch target.Kind {
	case store.RoomKindDirect:
		query = `
			SELECT 1 FROM contacts
			WHERE id = ? AND (user_low_id = ? OR user_high_id = ?)
		`
		args = []any{target.ID, userID, userID}
	case store.RoomKindGroup:
		query = `
			SELECT 1 FROM group_members
			WHERE group_id = ? AND user_id = ?
		`
		args = []any{target.ID, userID}
	default:
		return false, fmt.Errorf("unknown room kind %q", target.Kind)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}

	return true, nil
}
