package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustUser(t *testing.T, s *SQLiteStore, name string) *store.User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), name, "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return u
}

func mustMessage(t *testing.T, s *SQLiteStore, sender int64, target store.RoomTarget, text string) *store.Message {
	t.Helper()

	now := time.Now().UTC()
	msg := &store.Message{Text: text, SenderID: sender, Target: target, SentAt: now, UpdatedAt: now}
	if err := s.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	return msg
}

func TestCreateUserDuplicateIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustUser(t, s, "alice")
	if _, err := s.CreateUser(ctx, "alice", "hash"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetUserByIDMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetUserByID(context.Background(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateContactIsSymmetric(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")

	c1, err := s.CreateContact(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	c2, err := s.CreateContact(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create contact again: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("expected the same contact, got %d and %d", c1.ID, c2.ID)
	}
	if !c1.Has(alice.ID) || !c1.Has(bob.ID) {
		t.Fatalf("contact does not hold both users: %+v", c1)
	}
}

func TestCreateContactUnknownPeer(t *testing.T) {
	s := newTestStore(t)
	alice := mustUser(t, s, "alice")

	if _, err := s.CreateContact(context.Background(), alice.ID, 999); !errors.Is(err, store.ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}
}

func TestCreateMessageUnknownGroupIsForeignKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")

	now := time.Now().UTC()
	msg := &store.Message{Text: "x", SenderID: alice.ID, Target: store.GroupTarget(77), SentAt: now, UpdatedAt: now}
	if err := s.CreateMessage(ctx, msg); !errors.Is(err, store.ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}

	got, err := s.FindMessages(ctx, store.GroupTarget(77), store.Page{Take: 10})
	if err != nil {
		t.Fatalf("find messages: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no persisted rows, got %d", len(got))
	}
}

func TestFindMessagesNewestFirstWithPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	group, err := s.CreateGroup(ctx, "team", alice.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	target := store.GroupTarget(group.ID)

	for _, text := range []string{"one", "two", "three", "four"} {
		mustMessage(t, s, alice.ID, target, text)
	}

	tests := []struct {
		name     string
		page     store.Page
		expected []string
	}{
		{name: "first page", page: store.Page{Take: 2}, expected: []string{"four", "three"}},
		{name: "second page", page: store.Page{Skip: 2, Take: 2}, expected: []string{"two", "one"}},
		{name: "past the end", page: store.Page{Skip: 10, Take: 2}, expected: []string{}},
		{name: "oldest first", page: store.Page{Take: 2, Order: store.OldestFirst}, expected: []string{"one", "two"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindMessages(ctx, target, tt.page)
			if err != nil {
				t.Fatalf("find messages: %v", err)
			}
			if got == nil {
				t.Fatalf("expected non-nil slice")
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d messages, got %d", len(tt.expected), len(got))
			}
			for i, msg := range got {
				if msg.Text != tt.expected[i] {
					t.Errorf("expected %q at index %d, got %q", tt.expected[i], i, msg.Text)
				}
				if msg.Target != target {
					t.Errorf("unexpected target %v", msg.Target)
				}
			}
		})
	}
}

func TestUpdateMessageScopedToSenderAndRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	group, err := s.CreateGroup(ctx, "team", alice.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	other, err := s.CreateGroup(ctx, "other", alice.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	msg := mustMessage(t, s, alice.ID, store.GroupTarget(group.ID), "hello")

	if _, err := s.UpdateMessage(ctx, msg.ID, bob.ID, store.GroupTarget(group.ID), "hijack"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign sender: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateMessage(ctx, msg.ID, alice.ID, store.GroupTarget(other.ID), "moved"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("wrong room: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateMessage(ctx, 9999, alice.ID, store.GroupTarget(group.ID), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing id: expected ErrNotFound, got %v", err)
	}

	updated, err := s.UpdateMessage(ctx, msg.ID, alice.ID, store.GroupTarget(group.ID), "edited")
	if err != nil {
		t.Fatalf("update message: %v", err)
	}
	if updated.Text != "edited" || updated.SenderID != alice.ID {
		t.Fatalf("unexpected updated message: %+v", updated)
	}
	if updated.UpdatedAt.Before(updated.SentAt) {
		t.Fatalf("updated_at before sent_at: %+v", updated)
	}
}

func TestDeleteMessagesOnlyRemovesOwnedSubset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	group, err := s.CreateGroup(ctx, "team", alice.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := s.AddGroupMember(ctx, group.ID, bob.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	target := store.GroupTarget(group.ID)

	m1 := mustMessage(t, s, alice.ID, target, "mine")
	m2 := mustMessage(t, s, bob.ID, target, "bob's")

	removed, err := s.DeleteMessages(ctx, []int64{m1.ID, m2.ID, 12345}, alice.ID, target)
	if err != nil {
		t.Fatalf("delete messages: %v", err)
	}
	if len(removed) != 1 || removed[0] != m1.ID {
		t.Fatalf("expected only %d removed, got %v", m1.ID, removed)
	}

	if _, err := s.GetMessage(ctx, m1.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected m1 to be gone, got %v", err)
	}
	if _, err := s.GetMessage(ctx, m2.ID); err != nil {
		t.Fatalf("expected m2 to remain, got %v", err)
	}
}

func TestIsRoomMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	carol := mustUser(t, s, "carol")

	contact, err := s.CreateContact(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	group, err := s.CreateGroup(ctx, "team", alice.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	tests := []struct {
		name     string
		userID   int64
		target   store.RoomTarget
		expected bool
	}{
		{"contact side a", alice.ID, store.DirectTarget(contact.ID), true},
		{"contact side b", bob.ID, store.DirectTarget(contact.ID), true},
		{"contact outsider", carol.ID, store.DirectTarget(contact.ID), false},
		{"missing contact", alice.ID, store.DirectTarget(999), false},
		{"group owner", alice.ID, store.GroupTarget(group.ID), true},
		{"group outsider", bob.ID, store.GroupTarget(group.ID), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IsRoomMember(ctx, tt.userID, tt.target)
			if err != nil {
				t.Fatalf("is room member: %v", err)
			}
			if got != tt.expected {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDeleteUserCascadesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	contact, err := s.CreateContact(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	msg := mustMessage(t, s, alice.ID, store.DirectTarget(contact.ID), "hi")

	if err := s.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := s.GetMessage(ctx, msg.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cascade delete, got %v", err)
	}
	if err := s.DeleteUser(ctx, alice.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
