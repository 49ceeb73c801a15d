package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/speech"
	speechmock "github.com/Pavlo4242/bluethai/internal/speech/mock"
	translatemock "github.com/Pavlo4242/bluethai/internal/translate/mock"
	"github.com/Pavlo4242/bluethai/pkg/conversation"
	storemock "github.com/Pavlo4242/bluethai/pkg/conversation/mock"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

const waitTimeout = 3 * time.Second

var testKeys = persona.Keys{"Key 1": "k1", "Key 2": "k2"}

type harness struct {
	o     *Orchestrator
	src   *speechmock.Source
	out   *speechmock.Output
	tr    *translatemock.Translator
	store *storemock.Store
}

func newHarness(t *testing.T, seed func(*storemock.Store), keys persona.Keys) *harness {
	t.Helper()
	h := &harness{
		src:   speechmock.NewSource(),
		out:   speechmock.NewOutput(),
		tr:    translatemock.New(),
		store: storemock.New(),
	}
	if seed != nil {
		seed(h.store)
	}
	h.o = New(Config{
		Source:     h.src,
		Output:     h.out,
		Translator: h.tr,
		Store:      h.store,
		Keys:       keys,
	})
	if err := h.o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.o.Close() })
	h.wait(t, "a session is loaded", func(s State) bool { return s.CurrentSessionID != "" })
	return h
}

func (h *harness) wait(t *testing.T, what string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		s := h.o.State()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting until %s; state = %+v", what, s)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// activated returns the next attempt the speech source starts.
func (h *harness) activated(t *testing.T) *speechmock.Attempt {
	t.Helper()
	select {
	case a := <-h.src.Activated():
		return a
	case <-time.After(waitTimeout):
		t.Fatal("speech source was not activated")
	}
	return nil
}

// listening reports a as listening and waits until the state shows it.
func (h *harness) listening(t *testing.T, a *speechmock.Attempt) {
	t.Helper()
	a.Send(speech.Listening())
	h.wait(t, "listening", func(s State) bool { return s.Listening })
}

// listen starts an attempt and reports it as listening.
func (h *harness) listen(t *testing.T) *speechmock.Attempt {
	t.Helper()
	h.o.StartListening()
	a := h.activated(t)
	h.listening(t, a)
	return a
}

func (h *harness) call(t *testing.T) *translatemock.Call {
	t.Helper()
	select {
	case c := <-h.tr.Started():
		return c
	case <-time.After(waitTimeout):
		t.Fatal("no translation started")
	}
	return nil
}

func (h *harness) savedEntries(t *testing.T, sessionID string) []conversation.Entry {
	t.Helper()
	entries, err := h.store.Entries(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	return entries
}

func seedSessions(ids ...string) func(*storemock.Store) {
	return func(s *storemock.Store) {
		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		var sessions []conversation.Session
		for i, id := range ids {
			sessions = append(sessions, conversation.Session{ID: id, StartTime: base.Add(time.Duration(i) * time.Hour)})
		}
		s.Seed(sessions, nil)
	}
}

// ---- Bootstrap ----

func TestBootstrap_CreatesFirstSession(t *testing.T) {
	h := newHarness(t, nil, testKeys)

	if n := h.store.CallCount("CreateSession"); n != 1 {
		t.Errorf("CreateSession calls = %d, want 1", n)
	}
	s := h.wait(t, "the session list shows the new session", func(s State) bool { return len(s.Sessions) == 1 })
	if s.Sessions[0].ID != s.CurrentSessionID || s.Sessions[0].PreviewText != conversation.NoMessages {
		t.Errorf("sessions = %+v", s.Sessions)
	}
	if !h.o.Ready() {
		t.Error("Ready = false with a session loaded")
	}
}

func TestBootstrap_LoadsNewestSession(t *testing.T) {
	h := newHarness(t, func(s *storemock.Store) {
		seedSessions("old", "new")(s)
		s.Seed(nil, []conversation.Entry{
			conversation.NewEntry("new", "hello", "สวัสดี", true, time.Now()),
		})
	}, testKeys)

	s := h.wait(t, "the newest session's entries are shown", func(s State) bool { return len(s.Entries) == 1 })
	if s.CurrentSessionID != "new" {
		t.Errorf("current session = %q, want new", s.CurrentSessionID)
	}
	if h.store.CallCount("CreateSession") != 0 {
		t.Error("a session was created although sessions exist")
	}
	if s.Entries[0].EnglishText != "hello" {
		t.Errorf("entries = %+v", s.Entries)
	}
}

func TestDefaults(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	s := h.o.State()
	if !s.InputEnglish || !s.PlaybackEnabled || s.InputMode != persona.Hold {
		t.Errorf("defaults = %+v", s)
	}
	if s.APIKeyName != "Key 1" || s.Model.Identifier() != "gemini-1.5-flash" || s.Persona != persona.Pattaya {
		t.Errorf("translator defaults = %q %q %v", s.APIKeyName, s.Model, s.Persona)
	}
	if s.FontSize != DefaultFontSize {
		t.Errorf("font size = %d", s.FontSize)
	}
	if len(s.APIKeyNames) != 2 {
		t.Errorf("key names = %v", s.APIKeyNames)
	}
}

// ---- Recognition and translation ----

func TestFinalTranslatesAndPersists(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	sessionID := h.o.State().CurrentSessionID

	a := h.listen(t)
	a.Send(speech.Final("hello"))
	a.End()

	c := h.call(t)
	if c.Text != "hello" {
		t.Errorf("translated %q, want hello", c.Text)
	}
	s := h.wait(t, "the streaming pair appears", func(s State) bool { return s.Streaming != nil })
	if *s.Streaming != (StreamingTranslation{Source: "hello"}) || s.Listening || s.InterimText != "" {
		t.Errorf("state after final = %+v", s)
	}

	c.Send("สวัส")
	c.Send("ดี")
	h.wait(t, "the cumulative translation is shown", func(s State) bool {
		return s.Streaming != nil && s.Streaming.Translated == "สวัสดี"
	})

	c.Finish()
	h.wait(t, "the entry is shown", func(s State) bool { return len(s.Entries) == 1 && s.Streaming == nil })

	entries := h.savedEntries(t, sessionID)
	if len(entries) != 1 {
		t.Fatalf("persisted %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.EnglishText != "hello" || e.ThaiText != "สวัสดี" || !e.FromEnglish || e.SessionID != sessionID {
		t.Errorf("entry = %+v", e)
	}

	select {
	case u := <-h.out.Said():
		if u.Text != "สวัสดี" || u.IsEnglish {
			t.Errorf("spoke %+v, want the Thai translation", u)
		}
	case <-time.After(waitTimeout):
		t.Fatal("translation was not spoken")
	}
}

func TestPartialsThenFinal_OneTranslation(t *testing.T) {
	h := newHarness(t, nil, testKeys)

	a := h.listen(t)
	a.Send(speech.Partial("where"))
	h.wait(t, "the partial is shown", func(s State) bool { return s.InterimText == "where" })
	a.Send(speech.Partial("where is"))
	h.wait(t, "the next partial is shown", func(s State) bool { return s.InterimText == "where is" })
	a.Send(speech.Final("where is the beach"))
	a.End()

	c := h.call(t)
	if c.Text != "where is the beach" {
		t.Errorf("translated %q", c.Text)
	}
	s := h.wait(t, "listening ends", func(s State) bool { return !s.Listening })
	if s.InterimText != "" {
		t.Errorf("interim text = %q after final", s.InterimText)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(h.tr.Calls()); n != 1 {
		t.Errorf("translate calls = %d, want 1", n)
	}
}

func TestBlankFinal_NotTranslated(t *testing.T) {
	h := newHarness(t, nil, testKeys)

	a := h.listen(t)
	a.Send(speech.Partial("uh"))
	a.Send(speech.Final("   "))
	a.End()

	s := h.wait(t, "listening ends", func(s State) bool { return !s.Listening })
	if s.Streaming != nil || s.InterimText != "" {
		t.Errorf("state = %+v", s)
	}
	if n := len(h.tr.Calls()); n != 0 {
		t.Errorf("translate calls = %d, want 0", n)
	}
}

func TestNewFinalSupersedesStream(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	sessionID := h.o.State().CurrentSessionID

	a := h.listen(t)
	a.Send(speech.Final("A"))
	first := h.call(t)
	first.Send("เอ")
	h.wait(t, "the first translation streams", func(s State) bool {
		return s.Streaming != nil && s.Streaming.Translated == "เอ"
	})

	b := h.listen(t)
	b.Send(speech.Final("B"))
	second := h.call(t)

	select {
	case <-first.Done():
	case <-time.After(waitTimeout):
		t.Fatal("the superseded stream was not cancelled")
	}
	first.Send("เอเอ")
	first.Finish()

	s := h.wait(t, "the second translation is shown", func(s State) bool {
		return s.Streaming != nil && s.Streaming.Source == "B"
	})
	if s.Streaming.Translated != "" {
		t.Errorf("stale chunk leaked into the new stream: %+v", s.Streaming)
	}

	second.Send("บี")
	second.Finish()
	h.wait(t, "the entry is shown", func(s State) bool { return len(s.Entries) == 1 })

	time.Sleep(20 * time.Millisecond)
	entries := h.savedEntries(t, sessionID)
	if len(entries) != 1 || entries[0].EnglishText != "B" || entries[0].ThaiText != "บี" {
		t.Errorf("persisted %+v, want only the B entry", entries)
	}
}

func TestStaleStreamEventsDropped(t *testing.T) {
	o := New(Config{
		Source:     speechmock.NewSource(),
		Output:     speechmock.NewOutput(),
		Translator: translatemock.New(),
		Store:      storemock.New(),
		Keys:       testKeys,
	})
	defer o.Close()

	o.gen = 2
	o.turn = turn{gen: 2, sessionID: "s1", source: "B", fromEnglish: true}
	o.cur.streaming = &StreamingTranslation{Source: "B"}

	o.handle(chunk{gen: 1, text: "stale"})
	if o.cur.streaming.Translated != "" {
		t.Errorf("stale chunk applied: %+v", o.cur.streaming)
	}
	o.handle(streamEnded{gen: 1, text: "stale"})
	if o.cur.streaming == nil {
		t.Error("stale completion ended the current turn")
	}
	o.handle(streamEnded{gen: 1, err: errors.New("boom")})
	if o.cur.err != "" {
		t.Errorf("stale failure surfaced: %q", o.cur.err)
	}
	o.handle(chunk{gen: 2, text: "บี"})
	if o.cur.streaming.Translated != "บี" {
		t.Errorf("current chunk not applied: %+v", o.cur.streaming)
	}
}

func TestFinalBeforeSessionIsDropped(t *testing.T) {
	tr := translatemock.New()
	o := New(Config{
		Source:     speechmock.NewSource(),
		Output:     speechmock.NewOutput(),
		Translator: tr,
		Store:      storemock.New(),
		Keys:       testKeys,
	})
	defer o.Close()

	o.attemptSeq, o.attemptActive = 1, true
	o.handle(recognized{attempt: 1, ev: speech.Final("too early")})
	if len(tr.Calls()) != 0 || o.cur.streaming != nil {
		t.Error("a final without a session was translated")
	}
	if o.attemptActive {
		t.Error("the attempt should have ended")
	}
}

func TestRecognitionErrors_BenignStaySilent(t *testing.T) {
	tests := []struct {
		code    speech.ErrorCode
		wantErr string
	}{
		{speech.ErrNoMatch, ""},
		{speech.ErrSpeechTimeout, ""},
		{speech.ErrNetwork, "Network error"},
		{speech.ErrInsufficientPermissions, "Insufficient permissions"},
	}
	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			h := newHarness(t, nil, testKeys)
			a := h.listen(t)
			a.Send(speech.Failure(tt.code))
			a.End()

			s := h.wait(t, "listening ends", func(s State) bool { return !s.Listening })
			if s.Err != tt.wantErr {
				t.Errorf("Err = %q, want %q", s.Err, tt.wantErr)
			}
		})
	}
}

func TestIdleEndsListening(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	a := h.listen(t)
	h.o.StopListening()
	select {
	case <-a.Stopped():
	case <-time.After(waitTimeout):
		t.Fatal("source was not deactivated")
	}
	a.Send(speech.Idle())
	a.End()
	s := h.wait(t, "listening ends", func(s State) bool { return !s.Listening })
	if s.Err != "" || len(h.tr.Calls()) != 0 {
		t.Errorf("state = %+v", s)
	}
}

func TestTranslationFailure(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	sessionID := h.o.State().CurrentSessionID

	a := h.listen(t)
	a.Send(speech.Final("hello"))
	c := h.call(t)
	c.Send("สวั")
	c.Fail("quota exceeded")

	s := h.wait(t, "the failure is shown", func(s State) bool { return s.Err != "" })
	if !strings.HasPrefix(s.Err, "Translation failed: ") || !strings.Contains(s.Err, "quota exceeded") {
		t.Errorf("Err = %q", s.Err)
	}
	if s.Streaming != nil {
		t.Errorf("streaming = %+v after failure", s.Streaming)
	}
	if n := len(h.savedEntries(t, sessionID)); n != 0 {
		t.Errorf("persisted %d entries after a failure", n)
	}
	if len(h.out.Spoken()) != 0 {
		t.Error("a failed translation was spoken")
	}
}

func TestTranslationNotInitialized(t *testing.T) {
	h := newHarness(t, nil, persona.Keys{})

	a := h.listen(t)
	a.Send(speech.Final("hello"))

	s := h.wait(t, "the failure is shown", func(s State) bool { return s.Err != "" })
	if s.Err != "Translation failed: translate: client not initialized" {
		t.Errorf("Err = %q", s.Err)
	}
	if len(h.tr.Calls()) != 0 {
		t.Error("a stream was opened without an API key")
	}
}

func TestSaveFailure(t *testing.T) {
	h := newHarness(t, func(s *storemock.Store) { s.SaveEntryErr = errors.New("disk full") }, testKeys)

	a := h.listen(t)
	a.Send(speech.Final("hello"))
	c := h.call(t)
	c.Send("สวัสดี")
	c.Finish()

	s := h.wait(t, "the failure is shown", func(s State) bool { return s.Err != "" })
	if s.Err != "Failed to save translation: disk full" {
		t.Errorf("Err = %q", s.Err)
	}
	if s.Streaming != nil || len(s.Entries) != 0 {
		t.Errorf("state = %+v", s)
	}

	h.o.ClearError()
	h.wait(t, "the error is cleared", func(s State) bool { return s.Err == "" })
}

func TestPlaybackDisabled(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	h.o.SetPlaybackEnabled(false)
	h.wait(t, "playback is off", func(s State) bool { return !s.PlaybackEnabled })

	a := h.listen(t)
	a.Send(speech.Final("hello"))
	c := h.call(t)
	c.Send("สวัสดี")
	c.Finish()
	h.wait(t, "the entry is shown", func(s State) bool { return len(s.Entries) == 1 })
	if n := len(h.out.Spoken()); n != 0 {
		t.Errorf("spoke %d utterances with playback off", n)
	}
}

func TestThaiInputSpeaksEnglish(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	h.o.SwapLanguage()
	h.wait(t, "input is Thai", func(s State) bool { return !s.InputEnglish })

	a := h.listen(t)
	if a.Lang != types.Thai {
		t.Errorf("activated in %v, want Thai", a.Lang)
	}
	a.Send(speech.Final("สวัสดี"))
	c := h.call(t)
	c.Send("hello")
	c.Finish()

	select {
	case u := <-h.out.Said():
		if u.Text != "hello" || !u.IsEnglish {
			t.Errorf("spoke %+v", u)
		}
	case <-time.After(waitTimeout):
		t.Fatal("translation was not spoken")
	}
	s := h.wait(t, "the entry is shown", func(s State) bool { return len(s.Entries) == 1 })
	if e := s.Entries[0]; e.FromEnglish || e.ThaiText != "สวัสดี" || e.EnglishText != "hello" {
		t.Errorf("entry = %+v", e)
	}
}

// ---- Settings ----

func TestSettingsReconfigureTranslator(t *testing.T) {
	h := newHarness(t, nil, testKeys)

	h.o.SetPersona(persona.HiSo)
	h.o.SetAPIKeyName("Key 2")
	h.o.SetModel(persona.ModelSelection{Version: 2.0, Pro: true})

	a := h.listen(t)
	a.Send(speech.Final("good evening"))
	c := h.call(t)
	want := persona.ClientConfig{APIKey: "k2", Model: "gemini-2.0-pro", Instruction: persona.HiSo.Instruction(true)}
	if c.Config != want {
		t.Errorf("config = %+v, want %+v", c.Config, want)
	}
	c.Finish()

	h.o.SwapLanguage()
	a = h.listen(t)
	a.Send(speech.Final("สวัสดีตอนเย็น"))
	c = h.call(t)
	if c.Config.Instruction != persona.HiSo.Instruction(false) {
		t.Error("swapping the language did not switch the translation direction")
	}
	c.Finish()

	s := h.o.State()
	if s.Persona != persona.HiSo || s.APIKeyName != "Key 2" || s.Model.Identifier() != "gemini-2.0-pro" {
		t.Errorf("state = %+v", s)
	}
}

func TestSetAPIKeys(t *testing.T) {
	h := newHarness(t, nil, persona.Keys{})
	h.o.SetAPIKeys(persona.Keys{"Key 1": "fresh"})
	h.wait(t, "key names update", func(s State) bool { return len(s.APIKeyNames) == 1 })

	a := h.listen(t)
	a.Send(speech.Final("hello"))
	if c := h.call(t); c.Config.APIKey != "fresh" {
		t.Errorf("api key = %q", c.Config.APIKey)
	}
}

func TestInFlightKeepsConfiguration(t *testing.T) {
	h := newHarness(t, nil, testKeys)

	a := h.listen(t)
	a.Send(speech.Final("hello"))
	c := h.call(t)

	h.o.SetPersona(persona.Direct)
	h.wait(t, "persona changes", func(s State) bool { return s.Persona == persona.Direct })
	if c.Config.Instruction != persona.Pattaya.Instruction(true) {
		t.Error("the running stream's configuration changed")
	}
	c.Send("สวัสดี")
	c.Finish()
	h.wait(t, "the entry is shown", func(s State) bool { return len(s.Entries) == 1 })
}

func TestSwapLanguageAbandonsListening(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	a := h.listen(t)
	a.Send(speech.Partial("hel"))
	h.wait(t, "the partial is shown", func(s State) bool { return s.InterimText == "hel" })

	h.o.SwapLanguage()
	s := h.wait(t, "input swaps", func(s State) bool { return !s.InputEnglish })
	if s.Listening || s.InterimText != "" {
		t.Errorf("state = %+v", s)
	}
	deadline := time.Now().Add(waitTimeout)
	for !a.Ended() {
		if time.Now().After(deadline) {
			t.Fatal("the abandoned attempt was not cancelled")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDisplaySettings(t *testing.T) {
	h := newHarness(t, nil, testKeys)

	h.o.SetFontSize(100)
	h.wait(t, "font size clamps high", func(s State) bool { return s.FontSize == MaxFontSize })
	h.o.SetFontSize(4)
	h.wait(t, "font size clamps low", func(s State) bool { return s.FontSize == MinFontSize })
	h.o.SetFontSize(20)
	h.wait(t, "font size is set", func(s State) bool { return s.FontSize == 20 })

	h.o.SetInputMode(persona.Tap)
	h.wait(t, "input mode changes", func(s State) bool { return s.InputMode == persona.Tap })

	h.o.SetPersona(persona.Style(99))
	h.o.SetPlaybackEnabled(false)
	s := h.wait(t, "playback is off", func(s State) bool { return !s.PlaybackEnabled })
	if s.Persona != persona.Pattaya {
		t.Errorf("an unknown persona was applied: %v", s.Persona)
	}
}

func TestPressRelease(t *testing.T) {
	h := newHarness(t, nil, testKeys)

	// Hold: press starts, release stops.
	h.o.Press()
	a := h.activated(t)
	h.listening(t, a)
	h.o.Release()
	select {
	case <-a.Stopped():
	case <-time.After(waitTimeout):
		t.Fatal("release did not stop listening in hold mode")
	}
	a.Send(speech.Idle())
	a.End()
	h.wait(t, "listening ends", func(s State) bool { return !s.Listening })

	// Tap: press toggles, release does nothing.
	h.o.SetInputMode(persona.Tap)
	h.o.Press()
	b := h.activated(t)
	h.listening(t, b)
	h.o.Release()
	h.o.Press()
	select {
	case <-b.Stopped():
	case <-time.After(waitTimeout):
		t.Fatal("second press did not stop listening in tap mode")
	}
	if n := h.src.Deactivations(); n != 2 {
		t.Errorf("deactivations = %d, want 2", n)
	}
}

func TestSpeak(t *testing.T) {
	h := newHarness(t, nil, testKeys)

	h.o.SetPlaybackEnabled(false)
	h.o.Speak("muted", true)
	h.o.SetPlaybackEnabled(true)
	h.o.Speak("   ", true)
	h.o.Speak("สวัสดี", false)
	h.o.Speak("hello", true)

	for _, want := range []speechmock.Utterance{{Text: "สวัสดี"}, {Text: "hello", IsEnglish: true}} {
		select {
		case u := <-h.out.Said():
			if u != want {
				t.Errorf("spoke %+v, want %+v", u, want)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("%q was not spoken", want.Text)
		}
	}
	if n := len(h.out.Spoken()); n != 2 {
		t.Errorf("spoke %d utterances, want 2: %+v", n, h.out.Spoken())
	}
}

func TestTTSReadiness(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	if h.o.State().TTSReady {
		t.Fatal("TTSReady before the synthesiser reported")
	}

	h.out.Ready(speech.Readiness{OK: true, English: true})
	s := h.wait(t, "readiness is shown", func(s State) bool { return s.TTS.OK })
	if s.TTSReady {
		t.Error("TTSReady with Thai unavailable")
	}
	h.out.Ready(speech.Readiness{OK: true, English: true, Thai: true})
	h.wait(t, "TTS is ready", func(s State) bool { return s.TTSReady })
}

// ---- Sessions ----

func TestInFlightTranslationKeepsItsSession(t *testing.T) {
	h := newHarness(t, seedSessions("first", "second"), testKeys)

	a := h.listen(t)
	a.Send(speech.Final("hello"))
	c := h.call(t)

	h.o.LoadSession("first")
	h.wait(t, "the other session loads", func(s State) bool { return s.CurrentSessionID == "first" })

	c.Send("สวัสดี")
	c.Finish()
	h.wait(t, "the other session shows the new preview", func(s State) bool {
		for _, p := range s.Sessions {
			if p.ID == "second" && p.PreviewText == "hello" {
				return true
			}
		}
		return false
	})
	if n := len(h.savedEntries(t, "first")); n != 0 {
		t.Errorf("entry attributed to the session opened mid-translation")
	}
	if n := len(h.savedEntries(t, "second")); n != 1 {
		t.Errorf("second session has %d entries, want 1", n)
	}
	if s := h.o.State(); len(s.Entries) != 0 {
		t.Errorf("current view shows %d entries of another session", len(s.Entries))
	}
}

func TestStartNewSession(t *testing.T) {
	h := newHarness(t, seedSessions("existing"), testKeys)

	h.o.StartNewSession()
	s := h.wait(t, "a new session is current", func(s State) bool {
		return s.CurrentSessionID != "existing" && len(s.Sessions) == 2
	})
	if s.Sessions[0].ID != s.CurrentSessionID {
		t.Errorf("the new session should be listed first: %+v", s.Sessions)
	}
}

func TestDeleteCurrentSessionReplacesIt(t *testing.T) {
	h := newHarness(t, seedSessions("older", "newer"), testKeys)
	if id := h.o.State().CurrentSessionID; id != "newer" {
		t.Fatalf("current = %q", id)
	}

	h.o.DeleteSession("newer")
	h.wait(t, "the remaining session loads", func(s State) bool { return s.CurrentSessionID == "older" })

	h.o.DeleteSession("older")
	s := h.wait(t, "a replacement session is created", func(s State) bool {
		return s.CurrentSessionID != "" && s.CurrentSessionID != "older"
	})
	if h.store.CallCount("CreateSession") != 1 {
		t.Errorf("CreateSession calls = %d, want 1", h.store.CallCount("CreateSession"))
	}
	h.wait(t, "the list shows one session", func(st State) bool {
		return len(st.Sessions) == 1 && st.Sessions[0].ID == s.CurrentSessionID
	})
}

func TestDeleteSessionDropsItsStream(t *testing.T) {
	h := newHarness(t, seedSessions("older", "newer"), testKeys)

	a := h.listen(t)
	a.Send(speech.Final("hello"))
	c := h.call(t)
	c.Send("สวั")
	h.wait(t, "the translation streams", func(s State) bool {
		return s.Streaming != nil && s.Streaming.Translated == "สวั"
	})

	h.o.DeleteSession("newer")
	s := h.wait(t, "the remaining session loads", func(s State) bool { return s.CurrentSessionID == "older" })
	if s.Streaming != nil {
		t.Errorf("streaming = %+v after its session was deleted", s.Streaming)
	}
	select {
	case <-c.Done():
	case <-time.After(waitTimeout):
		t.Fatal("the stream of the deleted session was not cancelled")
	}
	c.Send("สวัสดี")
	c.Finish()

	time.Sleep(20 * time.Millisecond)
	if s := h.o.State(); s.Err != "" || s.Streaming != nil {
		t.Errorf("state = %+v, want no error and no stream", s)
	}
	if n := h.store.CallCount("SaveEntry"); n != 0 {
		t.Errorf("SaveEntry calls = %d, want 0", n)
	}
	if len(h.out.Spoken()) != 0 {
		t.Error("a dropped translation was spoken")
	}
}

func TestDeleteOtherSession(t *testing.T) {
	h := newHarness(t, seedSessions("older", "newer"), testKeys)
	h.o.DeleteSession("older")
	h.wait(t, "the list shrinks", func(s State) bool { return len(s.Sessions) == 1 })
	if id := h.o.State().CurrentSessionID; id != "newer" {
		t.Errorf("current = %q, want newer", id)
	}

	h.o.DeleteSession("missing")
	s := h.wait(t, "the failure is shown", func(s State) bool { return s.Err != "" })
	if !strings.HasPrefix(s.Err, "Failed to delete session: ") {
		t.Errorf("Err = %q", s.Err)
	}
}

// ---- Lifecycle ----

func TestClose(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	a := h.listen(t)

	if err := h.o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !h.src.Closed() || !h.out.Closed() {
		t.Error("Close did not release the speech source and output")
	}
	if !a.Ended() {
		t.Error("the running attempt was not cancelled")
	}
	if err := h.o.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := h.o.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
	h.o.StartListening()
}

func TestStartContextEndsActions(t *testing.T) {
	o := New(Config{
		Source:     speechmock.NewSource(),
		Output:     speechmock.NewOutput(),
		Translator: translatemock.New(),
		Store:      storemock.New(),
		Keys:       testKeys,
	})
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 4 * eventBuffer {
			o.ClearError()
		}
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("actions blocked after the Start context ended")
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, nil, testKeys)
	ctx, cancel := context.WithCancel(context.Background())
	updates := h.o.Subscribe(ctx)

	first := <-updates
	if first.CurrentSessionID == "" {
		t.Error("the first snapshot should be current")
	}
	h.o.SetFontSize(24)
	deadline := time.After(waitTimeout)
	for done := false; !done; {
		select {
		case s := <-updates:
			done = s.FontSize == 24
		case <-deadline:
			t.Fatal("no snapshot with the new font size")
		}
	}
	cancel()
	for range updates {
	}
}
