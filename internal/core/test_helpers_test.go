package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent pops the next queued event. Handle is synchronous, so anything it produced is already queued.
func nextEvent(t *testing.T, c *Client) *Event {
	t.Helper()

	select {
	case ev := <-c.Events:
		return ev
	default:
		t.Fatalf("client %s: no event queued", c.ID)
		return nil
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case ev := <-c.Events:
		t.Fatalf("client %s: unexpected event %+v", c.ID, ev)
	default:
	}
}

func requireErrorReply(t *testing.T, c *Client, code string) *Event {
	t.Helper()

	ev := nextEvent(t, c)
	require.Equal(t, EventError, ev.Kind)
	require.True(t, ev.Reply)
	require.NotNil(t, ev.Error)
	require.Equal(t, code, ev.Error.Code)
	return ev
}

type fixture struct {
	store *sqlite.SQLiteStore

	alice, bob, carol *store.User
	contact           *store.Contact // alice <-> bob
	group             *store.Group   // alice (owner), bob

	registry *Registry
	direct   *Relay
	groups   *Relay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{store: st}
	for _, u := range []struct {
		dst  **store.User
		name string
	}{{&f.alice, "alice"}, {&f.bob, "bob"}, {&f.carol, "carol"}} {
		*u.dst, err = st.CreateUser(ctx, u.name, "hash")
		require.NoError(t, err)
	}

	f.contact, err = st.CreateContact(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	f.group, err = st.CreateGroup(ctx, "team", f.alice.ID)
	require.NoError(t, err)
	require.NoError(t, st.AddGroupMember(ctx, f.group.ID, f.bob.ID))

	f.registry = NewRegistry(nil)
	f.direct = NewRelay(st, f.registry, RelayConfig{Kind: store.RoomKindDirect}, nil)
	f.groups = NewRelay(st, f.registry, RelayConfig{Kind: store.RoomKindGroup, PageSize: 3}, nil)
	return f
}

func (f *fixture) connect(t *testing.T, u *store.User) *Client {
	t.Helper()

	c := NewClient(u.Username+"-conn", 0)
	require.True(t, c.Authenticate(u.ID, u.Username, time.Now()))
	t.Cleanup(c.Close)
	return c
}

func (f *fixture) groupTarget() store.RoomTarget {
	return store.GroupTarget(f.group.ID)
}

func (f *fixture) directTarget() store.RoomTarget {
	return store.DirectTarget(f.contact.ID)
}

func (f *fixture) join(t *testing.T, r *Relay, c *Client, target store.RoomTarget) {
	t.Helper()

	r.Handle(context.Background(), c, &Command{Kind: CommandJoin, RequestID: "join", Target: target})
	ev := nextEvent(t, c)
	require.Equal(t, EventJoined, ev.Kind, "join failed: %+v", ev.Error)
}
