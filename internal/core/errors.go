package core

import "github.com/vovakirdan/wirechat-relay/internal/store"

// Error codes reported to clients. The set is closed.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ValidationError reports a malformed or contradictory intent.
func ValidationError(msg string) *CoreError {
	return coreError(ErrCodeValidation, msg)
}

// NotFoundError reports an absent message or room. Ownership mismatches use it too.
func NotFoundError(msg string) *CoreError {
	return coreError(ErrCodeNotFound, msg)
}

// UnauthorizedError reports a missing or failed authentication.
func UnauthorizedError(msg string) *CoreError {
	return coreError(ErrCodeUnauthorized, msg)
}

var errInternal = coreError(ErrCodeInternal, "internal error")

// ResolveTarget turns the two optional wire fields into a single room target.
// Exactly one of contactID and groupID must be set.
func ResolveTarget(contactID, groupID *int64) (store.RoomTarget, *CoreError) {
	switch {
	case contactID != nil && groupID != nil:
		return store.RoomTarget{}, ValidationError("contact_id and group_id are mutually exclusive")
	case contactID == nil && groupID == nil:
		return store.RoomTarget{}, ValidationError("one of contact_id or group_id is required")
	case contactID != nil:
		if *contactID <= 0 {
			return store.RoomTarget{}, ValidationError("contact_id must be positive")
		}
		return store.DirectTarget(*contactID), nil
	default:
		if *groupID <= 0 {
			return store.RoomTarget{}, ValidationError("group_id must be positive")
		}
		return store.GroupTarget(*groupID), nil
	}
}
