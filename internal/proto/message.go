package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
// ID is an optional client-chosen correlation id echoed on the ack or error.
type Inbound struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 2

	InboundTypeJoin    = "join"
	InboundTypeLeave   = "leave"
	InboundTypeCreate  = "create"
	InboundTypeFindAll = "find-all"
	InboundTypeUpdate  = "update"
	InboundTypeDelete  = "delete"

	OutboundTypeEvent = "event"
	OutboundTypeAck   = "ack"
	OutboundTypeError = "error"

	EventMessageCreated  = "message_created"
	EventMessageUpdated  = "message_updated"
	EventMessagesDeleted = "messages_deleted"
	EventMessageList     = "message_list"
	EventJoined          = "joined"
	EventLeft            = "left"
)

// TargetData names the conversation of an intent. Exactly one field must be set.
type TargetData struct {
	ContactID *int64 `json:"contact_id,omitempty"`
	GroupID   *int64 `json:"group_id,omitempty"`
}

// JoinData is the payload of join and leave.
type JoinData struct {
	TargetData
}

// CreateData posts a new message.
type CreateData struct {
	TargetData
	Message string `json:"message"`
}

// FindAllData requests one page of history, newest first.
type FindAllData struct {
	TargetData
	Skip int `json:"skip,omitempty"`
}

// UpdateData edits an own message.
type UpdateData struct {
	TargetData
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// DeleteData removes own messages by id.
type DeleteData struct {
	TargetData
	IDs []int64 `json:"ids"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a persisted message as seen by clients.
type EventMessage struct {
	ID        int64  `json:"id"`
	Text      string `json:"message"`
	SenderID  int64  `json:"sender_id"`
	ContactID *int64 `json:"contact_id,omitempty"`
	GroupID   *int64 `json:"group_id,omitempty"`
	SentAt    int64  `json:"sent_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// MessageListData answers find-all.
type MessageListData struct {
	TargetData
	Messages []EventMessage `json:"messages"`
}

// MessagesDeletedData lists the ids actually removed.
type MessagesDeletedData struct {
	TargetData
	IDs []int64 `json:"ids"`
}

// RoomData confirms a join or leave.
type RoomData struct {
	TargetData
}

// Error describes a protocol-level error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
