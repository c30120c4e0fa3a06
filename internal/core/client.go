package core

import (
	"sync"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// ConnState is the lifecycle position of a connection.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultCommandBuffer = 8
	defaultEventBuffer   = 64
)

// Client is a live connection as seen by the core layer.
// Events is a bounded per-connection queue; a full queue marks the client as a slow
// consumer and closes it rather than blocking broadcasts to other members.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu              sync.Mutex
	state           ConnState
	userID          int64
	username        string
	authenticatedAt time.Time
	rooms           map[string]store.RoomTarget

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a connection in the Connecting state.
// eventBuffer <= 0 selects the default queue size.
func NewClient(id string, eventBuffer int) *Client {
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, defaultCommandBuffer),
		Events:   make(chan *Event, eventBuffer),
		rooms:    make(map[string]store.RoomTarget),
		done:     make(chan struct{}),
	}
}

// Authenticate binds an identity to the connection. It only succeeds once, from Connecting.
func (c *Client) Authenticate(userID int64, username string, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnecting {
		return false
	}
	c.userID = userID
	c.username = username
	c.authenticatedAt = at
	c.state = StateAuthenticated
	return true
}

// UserID returns the authenticated user id, or 0 before authentication.
func (c *Client) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Username returns the authenticated username.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// AuthenticatedAt returns when the handshake succeeded.
func (c *Client) AuthenticatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticatedAt
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rooms returns the rooms the connection is currently joined to.
func (c *Client) Rooms() []store.RoomTarget {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]store.RoomTarget, 0, len(c.rooms))
	for _, target := range c.rooms {
		rooms = append(rooms, target)
	}
	return rooms
}

// InRoom reports whether the connection is joined to target.
func (c *Client) InRoom(target store.RoomTarget) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[target.Key()]
	return ok
}

// addRoom records the membership. It fails once the client is closed so that a join
// racing with teardown cannot outlive LeaveAll.
func (c *Client) addRoom(target store.RoomTarget) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return false
	}
	c.rooms[target.Key()] = target
	if c.state == StateAuthenticated {
		c.state = StateActive
	}
	return true
}

func (c *Client) removeRoom(target store.RoomTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, target.Key())
}

// Done is closed when the connection is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close moves the connection to Closed. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		close(c.done)
	})
}

// Deliver enqueues an event without blocking.
// It returns false if the client is closed or its queue is full.
func (c *Client) Deliver(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
