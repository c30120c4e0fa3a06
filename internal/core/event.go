package core

import "github.com/vovakirdan/wirechat-relay/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessageCreated carries a newly persisted message.
	EventMessageCreated EventKind = iota
	// EventMessageUpdated carries the post-update message.
	EventMessageUpdated
	// EventMessagesDeleted carries the ids actually removed.
	EventMessagesDeleted
	// EventMessageList answers find-all.
	EventMessageList
	// EventJoined confirms a room join.
	EventJoined
	// EventLeft confirms a room leave.
	EventLeft
	// EventError reports a failed intent to its issuer only.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Reply events answer one command of the receiving connection and carry its RequestID;
// the rest are room broadcasts.
type Event struct {
	Kind      EventKind
	Reply     bool
	RequestID string
	Target    store.RoomTarget

	Message    *store.Message
	Messages   []*store.Message
	DeletedIDs []int64
	Error      *CoreError
}
