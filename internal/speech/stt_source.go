package speech

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/Pavlo4242/bluethai/internal/observe"
	"github.com/Pavlo4242/bluethai/pkg/audio"
	"github.com/Pavlo4242/bluethai/pkg/provider/stt"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

const (
	defaultSpeechTimeout = 8 * time.Second
	defaultFlushTimeout  = 3 * time.Second
)

// ErrClosed is returned by Activate after Close.
var ErrClosed = errors.New("speech: source closed")

// SourceOption configures an [STTSource].
type SourceOption func(*STTSource)

// WithSpeechTimeout sets how long an attempt waits for the first recognised
// word before ending with [ErrSpeechTimeout].
func WithSpeechTimeout(d time.Duration) SourceOption {
	return func(s *STTSource) { s.speechTimeout = d }
}

// WithFlushTimeout bounds how long a deactivated attempt waits for the
// provider's remaining results.
func WithFlushTimeout(d time.Duration) SourceOption {
	return func(s *STTSource) { s.flushTimeout = d }
}

// WithSourceMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithSourceMetrics(m *observe.Metrics) SourceOption {
	return func(s *STTSource) { s.metrics = m }
}

// STTSource recognises microphone audio with a streaming STT provider. Each
// attempt opens its own provider session and capture stream and ends at the
// first end of utterance, on Deactivate, or on timeout.
type STTSource struct {
	provider      stt.Provider
	input         audio.Input
	metrics       *observe.Metrics
	speechTimeout time.Duration
	flushTimeout  time.Duration

	mu      sync.Mutex
	current *attempt
	closed  bool
	wg      sync.WaitGroup
}

type attempt struct {
	cancel context.CancelFunc
	stop   chan struct{}
	once   sync.Once
}

func (a *attempt) deactivate() { a.once.Do(func() { close(a.stop) }) }

// NewSTTSource returns a Source reading from input and recognising with provider.
func NewSTTSource(provider stt.Provider, input audio.Input, opts ...SourceOption) *STTSource {
	s := &STTSource{
		provider:      provider,
		input:         input,
		speechTimeout: defaultSpeechTimeout,
		flushTimeout:  defaultFlushTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Activate implements [Source].
func (s *STTSource) Activate(ctx context.Context, lang types.Language) (<-chan RecognitionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.current != nil {
		s.current.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &attempt{cancel: cancel, stop: make(chan struct{})}
	s.current = a

	events := make(chan RecognitionEvent, 16)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(events)
		defer cancel()
		s.run(ctx, a, lang, events)

		s.mu.Lock()
		if s.current == a {
			s.current = nil
		}
		s.mu.Unlock()
	}()
	return events, nil
}

// Deactivate implements [Source].
func (s *STTSource) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.deactivate()
	}
}

// Close implements [Source].
func (s *STTSource) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.current != nil {
		s.current.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// utterance accumulates the final segments of one attempt.
type utterance struct {
	segments []string
}

func (u *utterance) add(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	u.segments = append(u.segments, text)
	return true
}

func (u *utterance) with(partial string) string {
	parts := u.segments
	if p := strings.TrimSpace(partial); p != "" {
		parts = append(parts[:len(parts):len(parts)], p)
	}
	return strings.Join(parts, " ")
}

func (u *utterance) empty() bool { return len(u.segments) == 0 }

func (s *STTSource) run(ctx context.Context, a *attempt, lang types.Language, events chan<- RecognitionEvent) {
	log := observe.Logger(ctx).With("lang", lang.Code())
	emit := func(ev RecognitionEvent) bool {
		select {
		case events <- ev:
			s.metrics.RecordRecognitionEvent(ctx, ev.Kind.String())
			return true
		case <-ctx.Done():
			return false
		}
	}

	handle, err := s.provider.StartStream(ctx, stt.StreamConfig{
		SampleRate: audio.Speech.SampleRate,
		Channels:   audio.Speech.Channels,
		Language:   lang.Tag(),
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("speech: start recognition failed", "err", err)
			emit(Failure(classify(err)))
		}
		return
	}
	defer handle.Close()

	micCtx, stopMic := context.WithCancel(ctx)
	defer stopMic()
	frames, err := s.input.Open(micCtx)
	if err != nil {
		log.Warn("speech: open microphone failed", "err", err)
		code := ErrAudio
		if errors.Is(err, fs.ErrPermission) {
			code = ErrInsufficientPermissions
		}
		emit(Failure(code))
		return
	}
	if !emit(Listening()) {
		return
	}

	var (
		u        utterance
		heard    bool
		stopped  bool
		stop     = a.stop
		partials = handle.Partials()
		finals   = handle.Finals()
		conv     = audio.Converter{Target: audio.Speech}
		flush    <-chan time.Time
	)
	speechTimer := time.NewTimer(s.speechTimeout)
	defer speechTimer.Stop()

	finish := func() {
		stopped = true
		stop = nil
		frames = nil
		stopMic()
		_ = handle.Finish()
		flush = time.After(s.flushTimeout)
	}
	conclude := func() {
		switch {
		case !u.empty():
			emit(Final(u.with("")))
		case handle.Err() != nil:
			log.Warn("speech: recognition failed", "err", handle.Err())
			emit(Failure(classify(handle.Err())))
		case stopped:
			emit(Idle())
		default:
			emit(Failure(ErrNoMatch))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case f, ok := <-frames:
			if !ok {
				finish()
				continue
			}
			f = conv.Convert(f)
			if len(f.Data) == 0 {
				continue
			}
			if err := handle.SendAudio(f.Data); err != nil && !errors.Is(err, stt.ErrSessionClosed) {
				log.Debug("speech: send audio failed", "err", err)
			}

		case <-stop:
			finish()

		case tr, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if strings.TrimSpace(tr.Text) == "" {
				continue
			}
			heard = true
			emit(Partial(u.with(tr.Text)))

		case tr, ok := <-finals:
			if !ok {
				conclude()
				return
			}
			if u.add(tr.Text) {
				heard = true
				emit(Partial(u.with("")))
			}
			if tr.SpeechFinal && !u.empty() {
				emit(Final(u.with("")))
				return
			}

		case <-speechTimer.C:
			if !heard {
				emit(Failure(ErrSpeechTimeout))
				return
			}

		case <-flush:
			slog.Debug("speech: flush timed out", "lang", lang.Code())
			conclude()
			return
		}
	}
}

// classify maps a provider error to a recognition error code.
func classify(err error) ErrorCode {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrNetworkTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrNetworkTimeout
	case errors.Is(err, stt.ErrSessionClosed):
		return ErrClient
	default:
		return ErrNetwork
	}
}

var _ Source = (*STTSource)(nil)
