package signal_test

import (
	"testing"
	"time"

	"github.com/Pavlo4242/bluethai/internal/signal"
)

func TestVar_SetBumpsVersion(t *testing.T) {
	t.Parallel()

	v := signal.New("a")
	if val, ver := v.Get(); val != "a" || ver != 0 {
		t.Fatalf("Get() = %q, %d", val, ver)
	}
	v.Set("b")
	v.Update(func(s string) string { return s + "c" })
	if val, ver := v.Get(); val != "bc" || ver != 2 {
		t.Fatalf("Get() = %q, %d; want bc, 2", val, ver)
	}
}

func TestVar_WatchDeliversLatest(t *testing.T) {
	t.Parallel()

	v := signal.New(0)
	done := make(chan struct{})
	defer close(done)
	w := v.Watch(done)

	if got := <-w; got != 0 {
		t.Fatalf("initial = %d", got)
	}
	for i := 1; i <= 100; i++ {
		v.Set(i)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case got := <-w:
			if got == 100 {
				return
			}
		case <-deadline:
			t.Fatal("final value never delivered")
		}
	}
}

func TestDerive_Recomputes(t *testing.T) {
	t.Parallel()

	stop := make(chan struct{})
	defer close(stop)

	first := signal.New("สวัสดี")
	second := signal.New(1)
	calls := 0
	d := signal.Derive(stop, func() string {
		calls++
		return first.Value() + string(rune('0'+second.Value()))
	}, first, second)

	if got := d.Value(); got != "สวัสดี1" {
		t.Fatalf("initial = %q", got)
	}

	second.Set(2)
	d.Refresh()
	if got := d.Value(); got != "สวัสดี2" {
		t.Fatalf("after Set = %q", got)
	}

	before := calls
	if d.Refresh() {
		t.Error("Refresh recomputed without a source change")
	}
	if calls != before {
		t.Errorf("compute ran %d extra times", calls-before)
	}
}

func TestDerive_AsyncPropagation(t *testing.T) {
	t.Parallel()

	stop := make(chan struct{})
	defer close(stop)

	n := signal.New(1)
	doubled := signal.Derive(stop, func() int { return n.Value() * 2 }, n)
	plusOne := signal.Derive(stop, func() int { return doubled.Value() + 1 }, doubled)

	w := plusOne.Watch(stop)
	<-w
	n.Set(5)

	deadline := time.After(time.Second)
	for {
		select {
		case got := <-w:
			if got == 11 {
				return
			}
		case <-deadline:
			t.Fatalf("chained derivation stuck at %d", plusOne.Value())
		}
	}
}
