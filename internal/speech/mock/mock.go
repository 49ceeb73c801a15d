// Package mock provides scriptable implementations of [speech.Source] and
// [speech.Output] for orchestrator tests.
//
// Every Source activation yields an [Attempt] which the test receives on
// Source.Activated and drives by hand:
//
//	src := mock.NewSource()
//	// ... orchestrator starts listening ...
//	a := <-src.Activated()
//	a.Send(speech.Listening())
//	a.Send(speech.Final("hello"))
//	a.End()
package mock

import (
	"context"
	"sync"

	"github.com/Pavlo4242/bluethai/internal/speech"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// Attempt is one scripted recognition attempt.
type Attempt struct {
	// Lang is the language the attempt was activated in.
	Lang types.Language

	mu      sync.Mutex
	events  chan speech.RecognitionEvent
	ended   bool
	stopped chan struct{}
	once    sync.Once
}

// Send delivers ev to the consumer. It reports false once the attempt ended.
func (a *Attempt) Send(ev speech.RecognitionEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return false
	}
	a.events <- ev
	return true
}

// End closes the event stream.
func (a *Attempt) End() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ended {
		a.ended = true
		close(a.events)
	}
}

// Ended reports whether the stream was closed, by End or by cancellation.
func (a *Attempt) Ended() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ended
}

// Stopped is closed when the attempt is deactivated.
func (a *Attempt) Stopped() <-chan struct{} { return a.stopped }

func (a *Attempt) stop() { a.once.Do(func() { close(a.stopped) }) }

// Source is a mock [speech.Source].
type Source struct {
	mu sync.Mutex

	// ActivateErr, if non-nil, is returned by Activate.
	ActivateErr error

	current       *Attempt
	langs         []types.Language
	deactivations int
	closed        bool
	activated     chan *Attempt
}

// NewSource returns a Source whose Activated channel receives every attempt.
func NewSource() *Source {
	return &Source{activated: make(chan *Attempt, 64)}
}

// Activate implements [speech.Source]. The attempt's stream is closed when
// ctx ends.
func (s *Source) Activate(ctx context.Context, lang types.Language) (<-chan speech.RecognitionEvent, error) {
	s.mu.Lock()
	s.langs = append(s.langs, lang)
	if s.ActivateErr != nil {
		err := s.ActivateErr
		s.mu.Unlock()
		return nil, err
	}
	a := &Attempt{
		Lang:    lang,
		events:  make(chan speech.RecognitionEvent, 16),
		stopped: make(chan struct{}),
	}
	s.current = a
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		a.End()
	}()
	s.activated <- a
	return a.events, nil
}

// Deactivate implements [speech.Source].
func (s *Source) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivations++
	if s.current != nil {
		s.current.stop()
	}
}

// Close implements [speech.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Activated returns a channel that receives each attempt as it starts.
func (s *Source) Activated() <-chan *Attempt { return s.activated }

// Languages returns the language of every Activate call in order.
func (s *Source) Languages() []types.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Language(nil), s.langs...)
}

// Deactivations returns the number of Deactivate calls.
func (s *Source) Deactivations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deactivations
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Utterance records one Speak call.
type Utterance struct {
	Text      string
	IsEnglish bool
}

// Output is a mock [speech.Output].
type Output struct {
	mu sync.Mutex

	// Readiness, if non-nil, is reported from a new goroutine on Init.
	// Otherwise the test reports it through Ready.
	Readiness *speech.Readiness

	ready  func(speech.Readiness)
	spoken []Utterance
	inits  int
	closed bool
	said   chan Utterance
}

// NewOutput returns an Output whose Said channel receives every utterance.
func NewOutput() *Output {
	return &Output{said: make(chan Utterance, 64)}
}

// Init implements [speech.Output].
func (o *Output) Init(_ context.Context, ready func(speech.Readiness)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inits++
	o.ready = ready
	if o.Readiness != nil {
		r := *o.Readiness
		go ready(r)
	}
}

// Ready reports r through the callback passed to Init. It reports false if
// Init has not been called.
func (o *Output) Ready(r speech.Readiness) bool {
	o.mu.Lock()
	ready := o.ready
	o.mu.Unlock()
	if ready == nil {
		return false
	}
	ready(r)
	return true
}

// Speak implements [speech.Output].
func (o *Output) Speak(text string, isEnglish bool) {
	u := Utterance{Text: text, IsEnglish: isEnglish}
	o.mu.Lock()
	o.spoken = append(o.spoken, u)
	o.mu.Unlock()
	select {
	case o.said <- u:
	default:
	}
}

// Close implements [speech.Output].
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

// Said returns a channel that receives each utterance.
func (o *Output) Said() <-chan Utterance { return o.said }

// Spoken returns every utterance in order.
func (o *Output) Spoken() []Utterance {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Utterance(nil), o.spoken...)
}

// Inits returns the number of Init calls.
func (o *Output) Inits() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inits
}

// Closed reports whether Close was called.
func (o *Output) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

var (
	_ speech.Source = (*Source)(nil)
	_ speech.Output = (*Output)(nil)
)
