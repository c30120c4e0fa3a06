package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// roomBucket groups connections subscribed to the same room.
// A bucket is marked dead once emptied; joiners holding a stale pointer retry.
type roomBucket struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	dead    bool
}

// Registry tracks which live connections are joined to which rooms.
// Each room bucket has its own lock; the outer lock only guards the bucket map.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]*roomBucket
	log     *zerolog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		buckets: make(map[string]*roomBucket),
		log:     logger,
	}
}

func (r *Registry) bucket(key string, create bool) *roomBucket {
	r.mu.RLock()
	b := r.buckets[key]
	r.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b = r.buckets[key]; b == nil {
		b = &roomBucket{clients: make(map[*Client]struct{})}
		r.buckets[key] = b
	}
	return b
}

func (r *Registry) dropIfSame(key string, b *roomBucket) {
	r.mu.Lock()
	if r.buckets[key] == b {
		delete(r.buckets, key)
	}
	r.mu.Unlock()
}

// Join adds the client to the room. Returns true if newly added; joining twice is a no-op
// and a closed client is never added.
func (r *Registry) Join(c *Client, target store.RoomTarget) bool {
	key := target.Key()
	for {
		b := r.bucket(key, true)
		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			r.dropIfSame(key, b)
			continue
		}
		_, exists := b.clients[c]
		if exists {
			b.mu.Unlock()
			return false
		}
		if !c.addRoom(target) {
			emptied := len(b.clients) == 0
			if emptied {
				b.dead = true
			}
			b.mu.Unlock()
			if emptied {
				r.dropIfSame(key, b)
			}
			return false
		}
		b.clients[c] = struct{}{}
		b.mu.Unlock()
		return true
	}
}

// Leave removes the client from the room. Returns true if it was a member.
func (r *Registry) Leave(c *Client, target store.RoomTarget) bool {
	key := target.Key()
	b := r.bucket(key, false)
	if b == nil {
		c.removeRoom(target)
		return false
	}

	b.mu.Lock()
	_, exists := b.clients[c]
	delete(b.clients, c)
	c.removeRoom(target)
	emptied := len(b.clients) == 0 && !b.dead
	if emptied {
		b.dead = true
	}
	b.mu.Unlock()

	if emptied {
		r.dropIfSame(key, b)
	}
	return exists
}

// LeaveAll removes the client from every room it joined.
func (r *Registry) LeaveAll(c *Client) {
	for _, target := range c.Rooms() {
		r.Leave(c, target)
	}
}

// Broadcast delivers ev once to every client joined to target except exclude (may be nil).
// Delivery never blocks; clients whose queue is full are closed as slow consumers.
// Returns the number of clients that received the event.
func (r *Registry) Broadcast(target store.RoomTarget, ev *Event, exclude *Client) int {
	b := r.bucket(target.Key(), false)
	if b == nil {
		return 0
	}

	var slow []*Client
	delivered := 0

	b.mu.Lock()
	for client := range b.clients {
		if client == exclude {
			continue
		}
		if client.Deliver(ev) {
			delivered++
			continue
		}
		slow = append(slow, client)
	}
	b.mu.Unlock()

	for _, client := range slow {
		select {
		case <-client.Done():
			continue
		default:
		}
		r.log.Warn().Str("client_id", client.ID).Str("room", target.Key()).Msg("dropping slow consumer")
		client.Close()
	}

	return delivered
}

// Members returns the number of clients joined to target.
func (r *Registry) Members(target store.RoomTarget) int {
	b := r.bucket(target.Key(), false)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Rooms returns the number of rooms with at least one member.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets)
}
