// Package storetest is a conformance suite for conversation.Store
// implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Pavlo4242/bluethai/pkg/conversation"
)

// Run exercises newStore's implementation against the Store contract. Each
// subtest gets a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) conversation.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s conversation.Store)
	}{
		{"SessionsNewestFirst", testSessionsNewestFirst},
		{"EntryOrdering", testEntryOrdering},
		{"SaveAssignsIDs", testSaveAssignsIDs},
		{"SaveUnknownSession", testSaveUnknownSession},
		{"Previews", testPreviews},
		{"DeleteCascades", testDeleteCascades},
		{"DeleteUnknownSession", testDeleteUnknownSession},
		{"ChangeFeed", testChangeFeed},
		{"WatchEntries", testWatchEntries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func mustSession(t *testing.T, s conversation.Store) conversation.Session {
	t.Helper()
	sess, err := s.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func mustSave(t *testing.T, s conversation.Store, e conversation.Entry) conversation.Entry {
	t.Helper()
	saved, err := s.SaveEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}
	return saved
}

func testSessionsNewestFirst(t *testing.T, s conversation.Store) {
	a := mustSession(t, s)
	time.Sleep(2 * time.Millisecond)
	b := mustSession(t, s)
	time.Sleep(2 * time.Millisecond)
	c := mustSession(t, s)

	got, err := s.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	want := []string{c.ID, b.ID, a.ID}
	if len(got) != len(want) {
		t.Fatalf("got %d sessions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("session[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func testEntryOrdering(t *testing.T, s conversation.Store) {
	sess := mustSession(t, s)
	base := time.Now().Truncate(time.Millisecond)

	// Saved out of order; two entries share a timestamp.
	late := mustSave(t, s, conversation.NewEntry(sess.ID, "third", "สาม", true, base.Add(2*time.Second)))
	tie1 := mustSave(t, s, conversation.NewEntry(sess.ID, "first", "หนึ่ง", true, base))
	tie2 := mustSave(t, s, conversation.NewEntry(sess.ID, "สอง", "second", false, base))

	got, err := s.Entries(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	want := []int64{tie1.ID, tie2.ID, late.ID}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("entry[%d].ID = %d, want %d", i, got[i].ID, want[i])
		}
	}
	if got[1].FromEnglish || got[1].ThaiText != "สอง" || got[1].EnglishText != "second" {
		t.Errorf("entry round trip = %+v", got[1])
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, base)
	}

	empty, err := s.Entries(context.Background(), "no-such-session")
	if err != nil || len(empty) != 0 {
		t.Errorf("Entries(unknown) = %v, %v; want empty", empty, err)
	}
}

func testSaveAssignsIDs(t *testing.T, s conversation.Store) {
	sess := mustSession(t, s)
	a := mustSave(t, s, conversation.NewEntry(sess.ID, "hello", "สวัสดี", true, time.Now()))
	b := mustSave(t, s, conversation.NewEntry(sess.ID, "bye", "ลาก่อน", true, time.Now()))
	if a.ID == 0 || b.ID == 0 || a.ID == b.ID {
		t.Errorf("ids = %d, %d; want distinct non-zero", a.ID, b.ID)
	}
}

func testSaveUnknownSession(t *testing.T, s conversation.Store) {
	_, err := s.SaveEntry(context.Background(), conversation.NewEntry("ghost", "hi", "หวัดดี", true, time.Now()))
	if !errors.Is(err, conversation.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func testPreviews(t *testing.T, s conversation.Store) {
	empty := mustSession(t, s)
	time.Sleep(2 * time.Millisecond)
	talk := mustSession(t, s)

	base := time.Now()
	mustSave(t, s, conversation.NewEntry(talk.ID, "later", "ทีหลัง", true, base.Add(time.Second)))
	mustSave(t, s, conversation.NewEntry(talk.ID, "ไปไหน", "Where are you going?", false, base))

	got, err := s.SessionPreviews(context.Background())
	if err != nil {
		t.Fatalf("SessionPreviews: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d previews, want 2", len(got))
	}
	if got[0].ID != talk.ID || got[0].PreviewText != "ไปไหน" {
		t.Errorf("preview[0] = %+v, want source side of the earliest entry", got[0])
	}
	if got[1].ID != empty.ID || got[1].PreviewText != conversation.NoMessages {
		t.Errorf("preview[1] = %+v, want %q", got[1], conversation.NoMessages)
	}
}

func testDeleteCascades(t *testing.T, s conversation.Store) {
	ctx := context.Background()
	keep := mustSession(t, s)
	drop := mustSession(t, s)
	mustSave(t, s, conversation.NewEntry(keep.ID, "a", "ก", true, time.Now()))
	mustSave(t, s, conversation.NewEntry(drop.ID, "b", "ข", true, time.Now()))

	if err := s.DeleteSession(ctx, drop.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	sessions, _ := s.ListSessions(ctx)
	if len(sessions) != 1 || sessions[0].ID != keep.ID {
		t.Errorf("sessions after delete = %+v", sessions)
	}
	if entries, _ := s.Entries(ctx, drop.ID); len(entries) != 0 {
		t.Errorf("deleted session still has %d entries", len(entries))
	}
	if entries, _ := s.Entries(ctx, keep.ID); len(entries) != 1 {
		t.Errorf("kept session has %d entries, want 1", len(entries))
	}
}

func testDeleteUnknownSession(t *testing.T, s conversation.Store) {
	if err := s.DeleteSession(context.Background(), "ghost"); !errors.Is(err, conversation.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func testChangeFeed(t *testing.T, s conversation.Store) {
	changes, cancel := s.Subscribe()
	defer cancel()

	sess := mustSession(t, s)
	mustSave(t, s, conversation.NewEntry(sess.ID, "a", "ก", true, time.Now()))
	if err := s.DeleteSession(context.Background(), sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	want := []conversation.ChangeKind{conversation.SessionCreated, conversation.EntrySaved, conversation.SessionDeleted}
	for i, kind := range want {
		select {
		case c := <-changes:
			if c.Kind != kind || c.SessionID != sess.ID {
				t.Errorf("change[%d] = %+v, want kind %d for %s", i, c, kind, sess.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("change[%d] not delivered", i)
		}
	}
}

func testWatchEntries(t *testing.T, s conversation.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := mustSession(t, s)
	other := mustSession(t, s)
	views := conversation.WatchEntries(ctx, s, sess.ID)

	next := func() []conversation.Entry {
		t.Helper()
		select {
		case v := <-views:
			return v
		case <-time.After(time.Second):
			t.Fatal("no view emitted")
			return nil
		}
	}

	if got := next(); len(got) != 0 {
		t.Fatalf("initial view = %v, want empty", got)
	}
	mustSave(t, s, conversation.NewEntry(other.ID, "elsewhere", "ที่อื่น", true, time.Now()))
	mustSave(t, s, conversation.NewEntry(sess.ID, "here", "ที่นี่", true, time.Now()))
	if got := next(); len(got) != 1 || got[0].EnglishText != "here" {
		t.Fatalf("view after save = %+v", got)
	}

	cancel()
	select {
	case _, ok := <-views:
		for ok {
			_, ok = <-views
		}
	case <-time.After(time.Second):
		t.Fatal("view channel not closed after cancel")
	}
}
