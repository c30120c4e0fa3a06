package store

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when the requested row does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrForeignKey is returned when a write references a row that does not exist.
	ErrForeignKey = errors.New("referenced row does not exist")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("already exists")
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Contact is a two-party conversation. The pair is stored ordered so (a, b) and (b, a) collapse.
type Contact struct {
	ID         int64
	UserLowID  int64
	UserHighID int64
	CreatedAt  time.Time
}

// Has reports whether userID is one side of the contact pair.
func (c *Contact) Has(userID int64) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// Group represents a multi-party conversation.
type Group struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatedAt time.Time
}

// GroupMember represents group membership.
type GroupMember struct {
	GroupID  int64
	UserID   int64
	JoinedAt time.Time
}

// RoomKind defines which kind of conversation a message belongs to.
type RoomKind string

const (
	RoomKindDirect RoomKind = "direct"
	RoomKindGroup  RoomKind = "group"
)

// RoomTarget identifies exactly one conversation: a contact pair or a group.
type RoomTarget struct {
	Kind RoomKind
	ID   int64
}

// DirectTarget returns the target of a contact conversation.
func DirectTarget(contactID int64) RoomTarget {
	return RoomTarget{Kind: RoomKindDirect, ID: contactID}
}

// GroupTarget returns the target of a group conversation.
func GroupTarget(groupID int64) RoomTarget {
	return RoomTarget{Kind: RoomKindGroup, ID: groupID}
}

// Valid reports whether the target names a known kind and a positive id.
func (t RoomTarget) Valid() bool {
	return (t.Kind == RoomKindDirect || t.Kind == RoomKindGroup) && t.ID > 0
}

// Key is the routing key used for in-memory room bookkeeping, e.g. "group:12".
func (t RoomTarget) Key() string {
	return string(t.Kind) + ":" + strconv.FormatInt(t.ID, 10)
}

func (t RoomTarget) String() string {
	return t.Key()
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	Text      string
	SenderID  int64
	Target    RoomTarget
	SentAt    time.Time
	UpdatedAt time.Time
}

// SortOrder controls message listing order.
type SortOrder int

const (
	NewestFirst SortOrder = iota
	OldestFirst
)

// Page describes an offset window over a message listing.
type Page struct {
	Skip  int
	Take  int
	Order SortOrder
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID. Returns ErrNotFound when absent.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// DeleteUser removes the user together with everything it owns.
	DeleteUser(ctx context.Context, id int64) error
}

// ContactStore handles contact pair persistence.
type ContactStore interface {
	// CreateContact returns the contact between two users, creating it if needed.
	CreateContact(ctx context.Context, userID, peerID int64) (*Contact, error)

	// GetContact retrieves a contact by ID.
	GetContact(ctx context.Context, id int64) (*Contact, error)
}

// GroupStore handles group persistence.
type GroupStore interface {
	// CreateGroup creates a group and adds the owner as its first member.
	CreateGroup(ctx context.Context, name string, ownerID int64) (*Group, error)

	// GetGroup retrieves a group by ID.
	GetGroup(ctx context.Context, id int64) (*Group, error)

	// AddGroupMember adds a user to a group. Adding an existing member is a no-op.
	AddGroupMember(ctx context.Context, groupID, userID int64) error

	// RemoveGroupMember removes a user from a group.
	RemoveGroupMember(ctx context.Context, groupID, userID int64) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists msg and sets its ID.
	// Returns ErrForeignKey when the sender or target does not exist.
	CreateMessage(ctx context.Context, msg *Message) error

	// FindMessages lists messages of a single conversation.
	// Always returns a non-nil slice; an unknown target yields an empty one.
	FindMessages(ctx context.Context, target RoomTarget, page Page) ([]*Message, error)

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// UpdateMessage replaces the text of a message owned by senderID inside target.
	// Returns ErrNotFound when no such message exists, without saying which condition failed.
	UpdateMessage(ctx context.Context, id, senderID int64, target RoomTarget, text string) (*Message, error)

	// DeleteMessages deletes the subset of ids owned by senderID inside target
	// and returns the ids actually removed.
	DeleteMessages(ctx context.Context, ids []int64, senderID int64, target RoomTarget) ([]int64, error)

	// IsRoomMember reports whether userID may read and write in target.
	IsRoomMember(ctx context.Context, userID int64, target RoomTarget) (bool, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ContactStore
	GroupStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
