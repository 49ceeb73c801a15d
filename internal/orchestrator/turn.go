package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/speech"
	"github.com/Pavlo4242/bluethai/pkg/conversation"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// saveTimeout bounds one entry write. Writes are not cancelled by Close.
const saveTimeout = 10 * time.Second

// startListening activates the speech source in the input language. It is a
// no-op while an attempt is running.
func (o *Orchestrator) startListening() {
	if o.attemptActive {
		return
	}
	o.attemptSeq++
	n := o.attemptSeq
	lang := types.InputLanguage(o.cur.InputEnglish)

	ctx, cancel := context.WithCancel(o.ctx)
	events, err := o.source.Activate(ctx, lang)
	if err != nil {
		cancel()
		slog.Warn("orchestrator: activate speech source", "lang", lang.Code(), "err", err)
		o.setError("Speech recognition unavailable: " + err.Error())
		return
	}
	o.stopAttempt = cancel
	o.attemptActive = true
	o.cur.interim = ""

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range events {
			o.post(recognized{attempt: n, ev: ev})
		}
		o.post(attemptEnded{attempt: n})
	}()
}

// stopListening asks the running attempt to finish with what it heard.
func (o *Orchestrator) stopListening() {
	if o.attemptActive {
		o.source.Deactivate()
	}
}

// abandonListening cancels the running attempt without a result.
func (o *Orchestrator) abandonListening() {
	if o.attemptActive {
		o.endAttempt()
	}
}

func (o *Orchestrator) endAttempt() {
	o.attemptActive = false
	o.cur.listening = false
	o.cur.interim = ""
	if o.stopAttempt != nil {
		o.stopAttempt()
		o.stopAttempt = nil
	}
}

func (o *Orchestrator) onRecognized(e recognized) {
	if e.attempt != o.attemptSeq || !o.attemptActive {
		return
	}
	switch e.ev.Kind {
	case speech.EventListening:
		o.cur.listening = true
		o.cur.interim = ""
	case speech.EventPartial:
		o.cur.interim = e.ev.Text
	case speech.EventFinal:
		o.endAttempt()
		if text := strings.TrimSpace(e.ev.Text); text != "" {
			o.translate(text)
		}
	case speech.EventError:
		o.endAttempt()
		if !e.ev.Code.Benign() {
			slog.Warn("orchestrator: recognition failed", "code", int(e.ev.Code), "message", e.ev.Message)
			o.setError(e.ev.Message)
		}
	case speech.EventIdle:
		o.endAttempt()
	}
}

func (o *Orchestrator) onAttemptEnded(e attemptEnded) {
	if e.attempt == o.attemptSeq && o.attemptActive {
		o.endAttempt()
	}
}

// reconfigure schedules a recompute of the translator configuration from
// the current settings.
func (o *Orchestrator) reconfigure() {
	o.cfgSeq++
	seq, settings, keys := o.cfgSeq, o.cur.settings(), o.keys
	o.goAsync(func(context.Context) event {
		return configResolved{seq: seq, cfg: persona.Resolve(settings, keys)}
	})
}

func (o *Orchestrator) onConfigResolved(e configResolved) {
	if e.seq != o.cfgSeq || o.cfgApplied == e.seq {
		return
	}
	o.translator.Configure(e.cfg)
	o.cfgApplied = e.seq
}

// ensureConfigured applies the latest settings before a translation starts
// when the asynchronous recompute has not landed yet.
func (o *Orchestrator) ensureConfigured() {
	if o.cfgApplied == o.cfgSeq {
		return
	}
	o.translator.Configure(persona.Resolve(o.cur.settings(), o.keys))
	o.cfgApplied = o.cfgSeq
}

// translate cancels the live stream, if any, and starts translating text in
// the same step. Finals that arrive before a session exists are dropped.
func (o *Orchestrator) translate(text string) {
	if o.cur.sessionID == "" {
		slog.Info("orchestrator: no session loaded, dropping utterance")
		return
	}
	if o.stream != nil {
		o.stream.Cancel()
		o.stream = nil
	}
	o.gen++
	gen := o.gen
	o.ensureConfigured()

	o.turn = turn{
		gen:         gen,
		sessionID:   o.cur.sessionID,
		source:      text,
		fromEnglish: o.cur.InputEnglish,
	}
	o.cur.streaming = &StreamingTranslation{Source: text}

	s, err := o.translator.Translate(o.ctx, text)
	if err != nil {
		o.failTurn(err)
		return
	}
	o.stream = s

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for snapshot := range s.Updates() {
			o.post(chunk{gen: gen, text: snapshot})
		}
		o.post(streamEnded{gen: gen, text: s.Text(), err: s.Err()})
	}()
}

func (o *Orchestrator) onChunk(e chunk) {
	if e.gen != o.gen || o.cur.streaming == nil {
		return
	}
	o.turn.translated = e.text
	o.cur.streaming = &StreamingTranslation{Source: o.turn.source, Translated: e.text}
}

func (o *Orchestrator) onStreamEnded(e streamEnded) {
	if e.gen != o.gen || o.cur.streaming == nil {
		return
	}
	o.stream = nil
	if e.err != nil {
		o.failTurn(e.err)
		return
	}
	translated := strings.TrimSpace(e.text)
	if translated == "" {
		o.failTurn(errors.New("empty translation"))
		return
	}

	t := o.turn
	entry := conversation.NewEntry(t.sessionID, t.source, translated, t.fromEnglish, time.Now())
	o.goAsync(func(ctx context.Context) event {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		saved, err := o.store.SaveEntry(ctx, entry)
		return entrySaved{entry: saved, err: err}
	})
	o.cur.streaming = nil
	if o.cur.PlaybackEnabled {
		o.output.Speak(translated, !t.fromEnglish)
	}
}

// dropTurn cancels the live translation without an error. Later chunks of
// its generation are ignored.
func (o *Orchestrator) dropTurn() {
	if o.stream != nil {
		o.stream.Cancel()
		o.stream = nil
	}
	o.gen++
	o.cur.streaming = nil
	slog.Debug("orchestrator: translation dropped", "session_id", o.turn.sessionID)
}

func (o *Orchestrator) failTurn(err error) {
	slog.Warn("orchestrator: translation failed", "session_id", o.turn.sessionID, "err", err)
	o.stream = nil
	o.cur.streaming = nil
	o.setError("Translation failed: " + err.Error())
}

func (o *Orchestrator) onEntrySaved(e entrySaved) {
	if e.err != nil {
		slog.Error("orchestrator: save entry", "err", e.err)
		o.setError("Failed to save translation: " + e.err.Error())
		return
	}
	o.metrics.EntriesPersisted.Add(o.ctx, 1)
	slog.Debug("orchestrator: entry saved", "session_id", e.entry.SessionID, "entry_id", e.entry.ID)
}
