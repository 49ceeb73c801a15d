package conversation

import (
	"testing"
	"time"
)

func TestNotifier_Overflow(t *testing.T) {
	t.Parallel()

	var n Notifier
	ch, cancel := n.Subscribe()
	defer cancel()

	for range subscriberBuffer + 5 {
		n.Publish(Change{Kind: EntrySaved, SessionID: "a"})
	}

	var sawAll bool
	for range subscriberBuffer {
		select {
		case c := <-ch:
			if c.Kind == ChangeAll {
				sawAll = true
			}
		case <-time.After(time.Second):
			t.Fatal("buffer drained early")
		}
	}
	if !sawAll {
		t.Error("overflow did not deliver ChangeAll")
	}
}

func TestNotifier_UnsubscribeClosesOnce(t *testing.T) {
	t.Parallel()

	var n Notifier
	ch, cancel := n.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel open after unsubscribe")
	}
	n.Publish(Change{Kind: SessionCreated})
}

func TestChange_Affects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		c    Change
		want bool
	}{
		{Change{Kind: ChangeAll}, true},
		{Change{Kind: EntrySaved, SessionID: "a"}, true},
		{Change{Kind: EntrySaved, SessionID: "b"}, false},
		{Change{Kind: SessionDeleted, SessionID: "a"}, true},
		{Change{Kind: SessionCreated, SessionID: "a"}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Affects("a"); got != tt.want {
			t.Errorf("%+v.Affects(a) = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestNewEntry_Sides(t *testing.T) {
	t.Parallel()

	en := NewEntry("s", "hello", "สวัสดี", true, time.Time{})
	if en.EnglishText != "hello" || en.ThaiText != "สวัสดี" || en.SourceText() != "hello" || en.TranslatedText() != "สวัสดี" {
		t.Errorf("english entry = %+v", en)
	}
	th := NewEntry("s", "สวัสดี", "hello", false, time.Time{})
	if th.EnglishText != "hello" || th.ThaiText != "สวัสดี" || th.SourceText() != "สวัสดี" {
		t.Errorf("thai entry = %+v", th)
	}
}

func TestNewSession_IDsOrdered(t *testing.T) {
	t.Parallel()

	a := NewSession(time.Now())
	b := NewSession(time.Now().Add(time.Second))
	if a.ID == b.ID || a.ID >= b.ID {
		t.Errorf("ids %q, %q not unique and time-ordered", a.ID, b.ID)
	}
}
