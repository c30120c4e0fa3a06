package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// roomStripes is the number of locks that serialize mutations per room.
const roomStripes = 64

// Page sizes used when the configuration leaves them unset.
const (
	DefaultDirectPageSize = 50
	DefaultGroupPageSize  = 20
)

// MessageStore is the subset of persistence the relay depends on.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *store.Message) error
	FindMessages(ctx context.Context, target store.RoomTarget, page store.Page) ([]*store.Message, error)
	UpdateMessage(ctx context.Context, id, senderID int64, target store.RoomTarget, text string) (*store.Message, error)
	DeleteMessages(ctx context.Context, ids []int64, senderID int64, target store.RoomTarget) ([]int64, error)
	IsRoomMember(ctx context.Context, userID int64, target store.RoomTarget) (bool, error)
}

// RelayConfig configures one relay namespace.
type RelayConfig struct {
	// Kind is the only room kind this namespace serves.
	Kind store.RoomKind
	// PageSize caps find-all results.
	PageSize int
	// MaxTextLength caps message text in bytes. Zero disables the check.
	MaxTextLength int
}

type handlerFunc func(ctx context.Context, c *Client, cmd *Command) error

// Relay validates client intents, persists them, and fans results out to room members.
// One relay serves one namespace; relays of different namespaces may share a Registry.
type Relay struct {
	store    MessageStore
	registry *Registry
	cfg      RelayConfig
	log      *zerolog.Logger
	handlers map[CommandKind]handlerFunc
	now      func() time.Time

	// A room's mutation and its broadcast happen under one stripe, so peers
	// observe updates in the order the store committed them.
	stripes [roomStripes]sync.Mutex
}

// NewRelay builds a relay for a single room kind.
func NewRelay(st MessageStore, registry *Registry, cfg RelayConfig, logger *zerolog.Logger) *Relay {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultGroupPageSize
		if cfg.Kind == store.RoomKindDirect {
			cfg.PageSize = DefaultDirectPageSize
		}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	scoped := logger.With().Str("namespace", string(cfg.Kind)).Logger()

	r := &Relay{
		store:    st,
		registry: registry,
		cfg:      cfg,
		log:      &scoped,
		now:      func() time.Time { return time.Now().UTC() },
	}
	r.handlers = map[CommandKind]handlerFunc{
		CommandJoin:    r.handleJoin,
		CommandLeave:   r.handleLeave,
		CommandCreate:  r.handleCreate,
		CommandFindAll: r.handleFindAll,
		CommandUpdate:  r.handleUpdate,
		CommandDelete:  r.handleDelete,
	}
	return r
}

// Kind returns the room kind served by this relay.
func (r *Relay) Kind() store.RoomKind {
	return r.cfg.Kind
}

// Serve processes the client's commands in receipt order until ctx is done or the client closes.
func (r *Relay) Serve(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case cmd := <-c.Commands:
			if cmd != nil {
				r.Handle(ctx, c, cmd)
			}
		}
	}
}

// Handle runs a single command. Replies and errors go to c only; successful mutations
// are additionally broadcast to every connection joined to the room, sender included.
func (r *Relay) Handle(ctx context.Context, c *Client, cmd *Command) {
	switch c.State() {
	case StateClosed:
		return
	case StateConnecting:
		r.fail(c, cmd, UnauthorizedError("connection is not authenticated"))
		return
	}

	handler, ok := r.handlers[cmd.Kind]
	if !ok {
		r.fail(c, cmd, ValidationError("unknown intent"))
		return
	}
	if cmd.Target.Kind != r.cfg.Kind || !cmd.Target.Valid() {
		r.fail(c, cmd, ValidationError("room kind not served by this namespace"))
		return
	}

	if err := handler(ctx, c, cmd); err != nil {
		r.fail(c, cmd, err)
	}
}

// Disconnect tears the connection down. After it returns no broadcast reaches c.
func (r *Relay) Disconnect(c *Client) {
	c.Close()
	r.registry.LeaveAll(c)
}

func (r *Relay) handleJoin(ctx context.Context, c *Client, cmd *Command) error {
	if err := r.requireMember(ctx, c, cmd.Target); err != nil {
		return err
	}
	if r.registry.Join(c, cmd.Target) {
		r.log.Debug().Str("client_id", c.ID).Int64("user_id", c.UserID()).Str("room", cmd.Target.Key()).Msg("joined room")
	}
	r.reply(c, cmd, &Event{Kind: EventJoined, Target: cmd.Target})
	return nil
}

func (r *Relay) handleLeave(_ context.Context, c *Client, cmd *Command) error {
	r.registry.Leave(c, cmd.Target)
	r.reply(c, cmd, &Event{Kind: EventLeft, Target: cmd.Target})
	return nil
}

func (r *Relay) handleCreate(ctx context.Context, c *Client, cmd *Command) error {
	text, err := r.validText(cmd.Text)
	if err != nil {
		return err
	}
	if err := r.requireMember(ctx, c, cmd.Target); err != nil {
		return err
	}

	now := r.now()
	msg := &store.Message{
		Text:      text,
		SenderID:  c.UserID(),
		Target:    cmd.Target,
		SentAt:    now,
		UpdatedAt: now,
	}
	unlock := r.lockRoom(cmd.Target)
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		unlock()
		return err
	}
	r.registry.Broadcast(cmd.Target, &Event{Kind: EventMessageCreated, Target: cmd.Target, Message: msg}, nil)
	unlock()

	r.reply(c, cmd, &Event{Kind: EventMessageCreated, Target: cmd.Target, Message: msg})
	return nil
}

func (r *Relay) handleFindAll(ctx context.Context, c *Client, cmd *Command) error {
	if cmd.Skip < 0 {
		return ValidationError("skip must not be negative")
	}

	messages := []*store.Message{}
	member, err := r.store.IsRoomMember(ctx, c.UserID(), cmd.Target)
	if err != nil {
		return err
	}
	if member {
		messages, err = r.store.FindMessages(ctx, cmd.Target, store.Page{
			Skip:  cmd.Skip,
			Take:  r.cfg.PageSize,
			Order: store.NewestFirst,
		})
		if err != nil {
			return err
		}
	}

	r.reply(c, cmd, &Event{Kind: EventMessageList, Target: cmd.Target, Messages: messages})
	return nil
}

func (r *Relay) handleUpdate(ctx context.Context, c *Client, cmd *Command) error {
	if cmd.MessageID <= 0 {
		return ValidationError("id is required")
	}
	text, err := r.validText(cmd.Text)
	if err != nil {
		return err
	}

	unlock := r.lockRoom(cmd.Target)
	msg, err := r.store.UpdateMessage(ctx, cmd.MessageID, c.UserID(), cmd.Target, text)
	if err != nil {
		unlock()
		return err
	}
	r.registry.Broadcast(cmd.Target, &Event{Kind: EventMessageUpdated, Target: cmd.Target, Message: msg}, nil)
	unlock()

	r.reply(c, cmd, &Event{Kind: EventMessageUpdated, Target: cmd.Target, Message: msg})
	return nil
}

func (r *Relay) handleDelete(ctx context.Context, c *Client, cmd *Command) error {
	ids := dedupeIDs(cmd.MessageIDs)
	if len(ids) == 0 {
		return ValidationError("ids must not be empty")
	}

	unlock := r.lockRoom(cmd.Target)
	removed, err := r.store.DeleteMessages(ctx, ids, c.UserID(), cmd.Target)
	if err != nil {
		unlock()
		return err
	}
	if len(removed) > 0 {
		r.registry.Broadcast(cmd.Target, &Event{Kind: EventMessagesDeleted, Target: cmd.Target, DeletedIDs: removed}, nil)
	}
	unlock()

	r.reply(c, cmd, &Event{Kind: EventMessagesDeleted, Target: cmd.Target, DeletedIDs: removed})
	return nil
}

func (r *Relay) lockRoom(target store.RoomTarget) func() {
	mu := &r.stripes[uint64(target.ID)%roomStripes]
	mu.Lock()
	return mu.Unlock
}

func (r *Relay) requireMember(ctx context.Context, c *Client, target store.RoomTarget) error {
	member, err := r.store.IsRoomMember(ctx, c.UserID(), target)
	if err != nil {
		return err
	}
	if !member {
		return NotFoundError("room not found")
	}
	return nil
}

func (r *Relay) validText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ValidationError("message must not be empty")
	}
	if r.cfg.MaxTextLength > 0 && len(text) > r.cfg.MaxTextLength {
		return "", ValidationError("message is too long")
	}
	return text, nil
}

func (r *Relay) reply(c *Client, cmd *Command, ev *Event) {
	ev.Reply = true
	ev.RequestID = cmd.RequestID
	if !c.Deliver(ev) {
		select {
		case <-c.Done():
		default:
			r.log.Warn().Str("client_id", c.ID).Msg("reply queue full, closing connection")
			c.Close()
		}
	}
}

// fail reports err to the issuing connection only. Storage misses become NOT_FOUND;
// anything unexpected is logged and surfaced as an opaque internal error.
func (r *Relay) fail(c *Client, cmd *Command, err error) {
	var coreErr *CoreError
	switch {
	case errors.As(err, &coreErr):
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrForeignKey):
		coreErr = NotFoundError("not found")
	default:
		r.log.Error().Err(err).
			Str("client_id", c.ID).
			Int64("user_id", c.UserID()).
			Str("intent", cmd.Kind.String()).
			Str("room", cmd.Target.Key()).
			Msg("intent failed")
		coreErr = errInternal
	}
	r.reply(c, cmd, &Event{Kind: EventError, Target: cmd.Target, Error: coreErr})
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
