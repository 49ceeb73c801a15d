package speech

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	audiomock "github.com/Pavlo4242/bluethai/pkg/audio/mock"
	sttmock "github.com/Pavlo4242/bluethai/pkg/provider/stt/mock"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// collect reads events until the stream closes.
func collect(t *testing.T, ch <-chan RecognitionEvent) []RecognitionEvent {
	t.Helper()
	var got []RecognitionEvent
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("stream did not close; got %v", got)
		}
	}
}

func next(t *testing.T, ch <-chan RecognitionEvent) RecognitionEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("stream closed early")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return RecognitionEvent{}
}

func session(t *testing.T, p *sttmock.Provider) *sttmock.Session {
	t.Helper()
	select {
	case s := <-p.Started():
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("no recognition session started")
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func sameEvents(got, want []RecognitionEvent) bool {
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func TestSTTSource_SpeechFinal(t *testing.T) {
	p := sttmock.NewProvider()
	src := NewSTTSource(p, &audiomock.Input{})
	defer src.Close()

	events, err := src.Activate(context.Background(), types.Thai)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	sess := session(t, p)
	if ev := next(t, events); ev.Kind != EventListening {
		t.Fatalf("first event = %v, want listening", ev)
	}

	sess.Partial("sawas")
	if ev := next(t, events); ev != Partial("sawas") {
		t.Errorf("event = %v, want partial", ev)
	}
	sess.Final("sawasdee", false)
	sess.Final("khrap", true)

	got := collect(t, events)
	want := []RecognitionEvent{Partial("sawasdee"), Partial("sawasdee khrap"), Final("sawasdee khrap")}
	if !sameEvents(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	calls := p.Calls()
	if len(calls) != 1 || calls[0].Cfg.Language != "th-TH" || calls[0].Cfg.SampleRate != 16000 {
		t.Errorf("StartStream calls = %+v", calls)
	}
	waitFor(t, func() bool { return sess.CloseCount() == 1 })
}

func TestSTTSource_UtteranceEndMarker(t *testing.T) {
	p := sttmock.NewProvider()
	src := NewSTTSource(p, &audiomock.Input{})
	defer src.Close()

	events, err := src.Activate(context.Background(), types.English)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	sess := session(t, p)
	next(t, events)

	sess.Final("where is the beach", false)
	sess.Final("", true)

	got := collect(t, events)
	want := []RecognitionEvent{Partial("where is the beach"), Final("where is the beach")}
	if !sameEvents(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSTTSource_DeactivateFlushes(t *testing.T) {
	p := sttmock.NewProvider()
	in := &audiomock.Input{}
	src := NewSTTSource(p, in)
	defer src.Close()

	events, _ := src.Activate(context.Background(), types.English)
	sess := session(t, p)
	next(t, events)

	in.Push(make([]byte, 640))
	waitFor(t, func() bool { return len(sess.Audio()) == 1 })

	src.Deactivate()
	select {
	case <-sess.Finished():
	case <-time.After(3 * time.Second):
		t.Fatal("Finish was not called on deactivate")
	}
	sess.Final("hello", false)
	sess.End(nil)

	got := collect(t, events)
	want := []RecognitionEvent{Partial("hello"), Final("hello")}
	if !sameEvents(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSTTSource_Endings(t *testing.T) {
	tests := []struct {
		name       string
		endOnStop  bool
		stop       bool
		endErr     error
		wantEnding RecognitionEvent
	}{
		{name: "stopped without speech", endOnStop: true, stop: true, wantEnding: Idle()},
		{name: "recogniser gave up", wantEnding: Failure(ErrNoMatch)},
		{name: "network failure", endErr: errors.New("connection reset"), wantEnding: Failure(ErrNetwork)},
		{name: "deadline", endErr: fmt.Errorf("read: %w", context.DeadlineExceeded), wantEnding: Failure(ErrNetworkTimeout)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sttmock.NewProvider()
			p.EndOnFinish = tt.endOnStop
			src := NewSTTSource(p, &audiomock.Input{})
			defer src.Close()

			events, _ := src.Activate(context.Background(), types.English)
			sess := session(t, p)
			next(t, events)

			if tt.stop {
				src.Deactivate()
			} else {
				sess.End(tt.endErr)
			}
			got := collect(t, events)
			if len(got) != 1 || got[0] != tt.wantEnding {
				t.Errorf("events = %v, want [%v]", got, tt.wantEnding)
			}
		})
	}
}

func TestSTTSource_SpeechTimeout(t *testing.T) {
	p := sttmock.NewProvider()
	src := NewSTTSource(p, &audiomock.Input{}, WithSpeechTimeout(20*time.Millisecond))
	defer src.Close()

	events, _ := src.Activate(context.Background(), types.English)
	session(t, p)

	got := collect(t, events)
	want := []RecognitionEvent{Listening(), Failure(ErrSpeechTimeout)}
	if !sameEvents(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSTTSource_StartFailures(t *testing.T) {
	t.Run("provider", func(t *testing.T) {
		p := sttmock.NewProvider()
		p.StartStreamErr = errors.New("dial failed")
		src := NewSTTSource(p, &audiomock.Input{})
		defer src.Close()

		events, _ := src.Activate(context.Background(), types.English)
		got := collect(t, events)
		if len(got) != 1 || got[0] != Failure(ErrNetwork) {
			t.Errorf("events = %v", got)
		}
	})

	for _, tc := range []struct {
		err  error
		want ErrorCode
	}{
		{err: errors.New("no such device"), want: ErrAudio},
		{err: fmt.Errorf("open mic: %w", fs.ErrPermission), want: ErrInsufficientPermissions},
	} {
		t.Run(tc.want.Message(), func(t *testing.T) {
			p := sttmock.NewProvider()
			src := NewSTTSource(p, &audiomock.Input{OpenErr: tc.err})
			defer src.Close()

			events, _ := src.Activate(context.Background(), types.English)
			sess := session(t, p)
			got := collect(t, events)
			if len(got) != 1 || got[0] != Failure(tc.want) {
				t.Errorf("events = %v, want [%v]", got, Failure(tc.want))
			}
			waitFor(t, func() bool { return sess.CloseCount() == 1 })
		})
	}
}

func TestSTTSource_ActivateCancelsPrevious(t *testing.T) {
	p := sttmock.NewProvider()
	src := NewSTTSource(p, &audiomock.Input{})
	defer src.Close()

	first, _ := src.Activate(context.Background(), types.English)
	firstSess := session(t, p)
	next(t, first)

	second, _ := src.Activate(context.Background(), types.Thai)
	session(t, p)

	if got := collect(t, first); len(got) != 0 {
		t.Errorf("superseded attempt emitted %v", got)
	}
	waitFor(t, func() bool { return firstSess.CloseCount() == 1 })
	if ev := next(t, second); ev.Kind != EventListening {
		t.Errorf("second attempt first event = %v", ev)
	}
}

func TestSTTSource_Closed(t *testing.T) {
	src := NewSTTSource(sttmock.NewProvider(), &audiomock.Input{})
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := src.Activate(context.Background(), types.English); !errors.Is(err, ErrClosed) {
		t.Errorf("Activate after Close = %v, want ErrClosed", err)
	}
}

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		want   string
		benign bool
	}{
		{ErrNetworkTimeout, "Network timeout", false},
		{ErrNetwork, "Network error", false},
		{ErrAudio, "Audio recording error", false},
		{ErrServer, "Server error", false},
		{ErrClient, "Client side error", false},
		{ErrSpeechTimeout, "No speech input", true},
		{ErrNoMatch, "No speech input", true},
		{ErrRecognizerBusy, "Recognizer busy", false},
		{ErrInsufficientPermissions, "Insufficient permissions", false},
		{ErrorCode(42), "Recognition error (code: 42)", false},
	}
	for _, tt := range tests {
		if got := tt.code.Message(); got != tt.want {
			t.Errorf("%d.Message() = %q, want %q", tt.code, got, tt.want)
		}
		if tt.code.Benign() != tt.benign {
			t.Errorf("%d.Benign() = %v", tt.code, tt.code.Benign())
		}
	}
}
