package core

import "github.com/vovakirdan/wirechat-relay/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin subscribes the connection to a room.
	CommandJoin CommandKind = iota
	// CommandLeave unsubscribes the connection from a room.
	CommandLeave
	// CommandCreate persists a new message and fans it out.
	CommandCreate
	// CommandFindAll returns one page of room history.
	CommandFindAll
	// CommandUpdate edits the text of an own message.
	CommandUpdate
	// CommandDelete removes a batch of own messages.
	CommandDelete
)

var commandNames = map[CommandKind]string{
	CommandJoin:    "join",
	CommandLeave:   "leave",
	CommandCreate:  "create",
	CommandFindAll: "find-all",
	CommandUpdate:  "update",
	CommandDelete:  "delete",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command represents an intent issued by a client.
type Command struct {
	Kind      CommandKind
	RequestID string
	Target    store.RoomTarget

	MessageID  int64   // update
	MessageIDs []int64 // delete
	Text       string  // create, update
	Skip       int     // find-all
}
