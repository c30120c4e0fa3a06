package core

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

func activeClient(t *testing.T, id string, buffer int) *Client {
	t.Helper()

	c := NewClient(id, buffer)
	require.True(t, c.Authenticate(1, id, time.Now()))
	t.Cleanup(c.Close)
	return c
}

func TestRegistryJoinIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	c := activeClient(t, "a", 0)
	room := store.GroupTarget(1)

	assert.True(t, r.Join(c, room))
	assert.False(t, r.Join(c, room))
	assert.Equal(t, 1, r.Members(room))
	assert.Equal(t, StateActive, c.State())

	assert.Equal(t, 1, r.Broadcast(room, &Event{Kind: EventMessageCreated}, nil))
	_ = nextEvent(t, c)
	requireNoEvent(t, c)
}

func TestRegistryLeaveAbsentIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	c := activeClient(t, "a", 0)

	assert.False(t, r.Leave(c, store.DirectTarget(7)))

	r.Join(c, store.DirectTarget(7))
	assert.True(t, r.Leave(c, store.DirectTarget(7)))
	assert.False(t, r.Leave(c, store.DirectTarget(7)))
	assert.Zero(t, r.Rooms())
}

func TestRegistryRoomKindsDoNotCollide(t *testing.T) {
	r := NewRegistry(nil)
	a, b := activeClient(t, "a", 0), activeClient(t, "b", 0)

	r.Join(a, store.DirectTarget(5))
	r.Join(b, store.GroupTarget(5))

	assert.Equal(t, 1, r.Broadcast(store.GroupTarget(5), &Event{Kind: EventMessageCreated}, nil))
	requireNoEvent(t, a)
	_ = nextEvent(t, b)
}

func TestRegistryBroadcastExclude(t *testing.T) {
	r := NewRegistry(nil)
	a, b := activeClient(t, "a", 0), activeClient(t, "b", 0)
	room := store.GroupTarget(1)
	r.Join(a, room)
	r.Join(b, room)

	assert.Equal(t, 1, r.Broadcast(room, &Event{Kind: EventMessageCreated}, a))
	requireNoEvent(t, a)
	_ = nextEvent(t, b)
}

func TestRegistryClosesSlowConsumer(t *testing.T) {
	r := NewRegistry(nil)
	fast, slow := activeClient(t, "fast", 16), activeClient(t, "slow", 1)
	room := store.GroupTarget(1)
	r.Join(fast, room)
	r.Join(slow, room)

	r.Broadcast(room, &Event{Kind: EventMessageCreated}, nil)
	r.Broadcast(room, &Event{Kind: EventMessageCreated}, nil)

	assert.Equal(t, StateClosed, slow.State())
	assert.Len(t, fast.Events, 2)
	assert.False(t, slow.Deliver(&Event{}))
}

func TestRegistryConcurrentJoinLeaveBroadcast(t *testing.T) {
	r := NewRegistry(nil)
	room := store.GroupTarget(1)

	stay := activeClient(t, "stay", 4096)
	r.Join(stay, room)

	workers := make([]*Client, 16)
	for i := range workers {
		workers[i] = activeClient(t, fmt.Sprintf("c%d", i), 4096)
	}

	var wg sync.WaitGroup
	for _, c := range workers {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for range 100 {
				r.Join(c, room)
				r.Broadcast(room, &Event{Kind: EventMessageCreated}, nil)
				r.Leave(c, room)
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, r.Members(room))
	assert.Len(t, stay.Events, 16*100)

	r.Leave(stay, room)
	assert.Zero(t, r.Rooms())
}

func TestResolveTarget(t *testing.T) {
	ptr := func(v int64) *int64 { return &v }

	tests := []struct {
		name    string
		contact *int64
		group   *int64
		want    store.RoomTarget
		wantErr bool
	}{
		{name: "contact", contact: ptr(3), want: store.DirectTarget(3)},
		{name: "group", group: ptr(4), want: store.GroupTarget(4)},
		{name: "both", contact: ptr(3), group: ptr(4), wantErr: true},
		{name: "neither", wantErr: true},
		{name: "zero contact", contact: ptr(0), wantErr: true},
		{name: "negative group", group: ptr(-1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(tt.contact, tt.group)
			if tt.wantErr {
				require.NotNil(t, err)
				assert.Equal(t, ErrCodeValidation, err.Code)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryJoinAfterCloseIsRejected(t *testing.T) {
	r := NewRegistry(nil)
	c := activeClient(t, "a", 0)
	c.Close()

	assert.False(t, r.Join(c, store.GroupTarget(1)))
	assert.Zero(t, r.Members(store.GroupTarget(1)))
	assert.Zero(t, r.Rooms())
}
