// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Every StartStream call yields a fresh Session which the test
// receives on Provider.Started and scripts by hand:
//
//	p := mock.NewProvider()
//	handle, _ := p.StartStream(ctx, cfg)
//	sess := <-p.Started()
//	sess.Partial("hel")
//	sess.Final("hello", true)
//	sess.End(nil)
package mock

import (
	"context"
	"sync"

	"github.com/Pavlo4242/bluethai/pkg/provider/stt"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// EndOnFinish makes every new Session end normally as soon as Finish is
	// called, as a provider with nothing left to flush would.
	EndOnFinish bool

	calls   []StartStreamCall
	started chan *Session
}

// NewProvider returns a Provider whose Started channel receives every session.
func NewProvider() *Provider {
	return &Provider{started: make(chan *Session, 64)}
}

// StartStream records the call and returns a new Session.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	p.calls = append(p.calls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		err := p.StartStreamErr
		p.mu.Unlock()
		return nil, err
	}
	s := NewSession()
	s.endOnFinish = p.EndOnFinish
	started := p.started
	p.mu.Unlock()

	if started != nil {
		started <- s
	}
	return s, nil
}

// Started returns a channel that receives each Session as it is opened. It is
// nil for a zero Provider; use NewProvider.
func (p *Provider) Started() <-chan *Session { return p.started }

// Calls returns every StartStream call so far. Thread-safe.
func (p *Provider) Calls() []StartStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StartStreamCall(nil), p.calls...)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Session is a mock implementation of stt.SessionHandle.
type Session struct {
	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	partials chan types.Transcript
	finals   chan types.Transcript
	finished chan struct{}

	mu          sync.Mutex
	endOnFinish bool
	audio       [][]byte
	ended       bool
	err         error
	finishOnce  sync.Once
	closeCount  int
}

// NewSession returns a Session with buffered result channels.
func NewSession() *Session {
	return &Session{
		partials: make(chan types.Transcript, 64),
		finals:   make(chan types.Transcript, 64),
		finished: make(chan struct{}),
	}
}

// Partial emits an interim transcript.
func (s *Session) Partial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.partials <- types.Transcript{Text: text}
	}
}

// Final emits a final transcript. speechFinal marks the end of the utterance.
func (s *Session) Final(text string, speechFinal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.finals <- types.Transcript{Text: text, IsFinal: true, SpeechFinal: speechFinal}
	}
}

// End closes the result channels. A non-nil err is reported by Err.
func (s *Session) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(err)
}

func (s *Session) endLocked(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.partials)
	close(s.finals)
}

// SendAudio records a copy of chunk and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	select {
	case <-s.finished:
		return stt.ErrSessionClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, append([]byte(nil), chunk...))
	return s.SendAudioErr
}

// Partials returns the interim transcript channel.
func (s *Session) Partials() <-chan types.Transcript { return s.partials }

// Finals returns the final transcript channel.
func (s *Session) Finals() <-chan types.Transcript { return s.finals }

// Finish marks the audio as complete and closes Finished.
func (s *Session) Finish() error {
	s.finishOnce.Do(func() {
		close(s.finished)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.endOnFinish {
			s.endLocked(nil)
		}
	})
	return nil
}

// Finished is closed once Finish or Close has been called.
func (s *Session) Finished() <-chan struct{} { return s.finished }

// Err returns the error passed to End.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the session without error if it has not ended yet.
func (s *Session) Close() error {
	s.finishOnce.Do(func() { close(s.finished) })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	s.endLocked(nil)
	return nil
}

// Audio returns copies of every chunk passed to SendAudio. Thread-safe.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.audio...)
}

// CloseCount returns the number of Close calls. Thread-safe.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)
