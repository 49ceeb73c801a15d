package translate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Pavlo4242/bluethai/internal/observe"
	"github.com/Pavlo4242/bluethai/internal/persona"
	"github.com/Pavlo4242/bluethai/internal/translate"
	"github.com/Pavlo4242/bluethai/pkg/provider/llm"
	llmmock "github.com/Pavlo4242/bluethai/pkg/provider/llm/mock"
)

// countingFactory returns p for every call and records the configs it saw.
type countingFactory struct {
	mu    sync.Mutex
	p     llm.Provider
	err   error
	calls []persona.ClientConfig
}

func (f *countingFactory) build(_ context.Context, cfg persona.ClientConfig) (llm.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cfg)
	return f.p, f.err
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newClient(t *testing.T, f *countingFactory) *translate.Client {
	t.Helper()
	return translate.NewClient(f.build, translate.WithMetrics(testMetrics(t)))
}

var testConfig = persona.ClientConfig{
	APIKey:      "k1",
	Model:       "gemini-1.5-flash",
	Instruction: persona.Direct.Instruction(true),
}

func collect(t *testing.T, s *translate.Stream) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-s.Updates():
			if !ok {
				return got
			}
			got = append(got, u)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestTranslate_NotInitialized(t *testing.T) {
	t.Parallel()

	f := &countingFactory{p: &llmmock.Provider{}}
	c := newClient(t, f)

	if _, err := c.Translate(context.Background(), "hello"); !errors.Is(err, translate.ErrNotInitialized) {
		t.Fatalf("before Configure: err = %v, want ErrNotInitialized", err)
	}

	c.Configure(persona.ClientConfig{Model: "gemini-1.5-flash", Instruction: "x"})
	if _, err := c.Translate(context.Background(), "hello"); !errors.Is(err, translate.ErrNotInitialized) {
		t.Fatalf("empty key: err = %v, want ErrNotInitialized", err)
	}
	if f.count() != 0 {
		t.Errorf("factory called %d times for an empty key", f.count())
	}
	if c.Ready() {
		t.Error("Ready() = true without a key")
	}
}

func TestTranslate_FactoryErrorIsNotInitialized(t *testing.T) {
	t.Parallel()

	buildErr := errors.New("bad key format")
	c := newClient(t, &countingFactory{err: buildErr})
	c.Configure(testConfig)

	_, err := c.Translate(context.Background(), "hello")
	if !errors.Is(err, translate.ErrNotInitialized) || !errors.Is(err, buildErr) {
		t.Fatalf("err = %v, want ErrNotInitialized wrapping the build error", err)
	}
}

func TestConfigure_Idempotent(t *testing.T) {
	t.Parallel()

	f := &countingFactory{p: &llmmock.Provider{}}
	c := newClient(t, f)

	c.Configure(testConfig)
	c.Configure(testConfig)
	c.Configure(testConfig)
	if f.count() != 1 {
		t.Fatalf("factory calls = %d, want 1 for identical configs", f.count())
	}

	changed := testConfig
	changed.Instruction = persona.Direct.Instruction(false)
	c.Configure(changed)
	if f.count() != 2 {
		t.Fatalf("factory calls = %d, want 2 after a change", f.count())
	}
	if c.Config() != changed {
		t.Errorf("Config() = %+v, want %+v", c.Config(), changed)
	}
}

func TestTranslate_EmptyTextNeverSent(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{}
	c := newClient(t, &countingFactory{p: p})
	c.Configure(testConfig)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := c.Translate(context.Background(), text); !errors.Is(err, translate.ErrEmptyText) {
			t.Errorf("Translate(%q) err = %v, want ErrEmptyText", text, err)
		}
	}
	if p.StreamCallCount() != 0 {
		t.Errorf("provider received %d requests for blank text", p.StreamCallCount())
	}
}

func TestTranslate_CumulativeSnapshots(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "สวัส"}, {Text: ""}, {Text: "ดี"}, {Text: "ครับ", FinishReason: "stop"}},
	}
	c := newClient(t, &countingFactory{p: p})
	c.Configure(testConfig)

	s, err := c.Translate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	got := collect(t, s)
	want := []string{"สวัส", "สวัสดี", "สวัสดีครับ"}
	if len(got) != len(want) {
		t.Fatalf("updates = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if s.Text() != "สวัสดีครับ" {
		t.Errorf("Text() = %q", s.Text())
	}

	req, _ := p.LastStreamRequest()
	if req.SystemPrompt != testConfig.Instruction {
		t.Errorf("system prompt = %q, want the persona instruction", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v, want a single user message", req.Messages)
	}
	if req.Temperature != translate.DefaultTemperature {
		t.Errorf("temperature = %v, want %v", req.Temperature, translate.DefaultTemperature)
	}
}

func TestTranslate_MidStreamError(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "hel"}, {FinishReason: llm.FinishReasonError, Text: "quota exceeded"}},
	}
	c := newClient(t, &countingFactory{p: p})
	c.Configure(testConfig)

	s, err := c.Translate(context.Background(), "สวัสดี")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	collect(t, s)
	if err := s.Err(); err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("Err() = %v, want a stream failure", err)
	}
}

func TestTranslate_StartError(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{StreamErr: errors.New("unauthorized")}
	c := newClient(t, &countingFactory{p: p})
	c.Configure(testConfig)

	_, err := c.Translate(context.Background(), "hello")
	if err == nil || errors.Is(err, translate.ErrNotInitialized) {
		t.Fatalf("err = %v, want a stream error distinct from ErrNotInitialized", err)
	}
}

func TestTranslate_Cancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := &llmmock.Provider{
		StreamFunc: func(ctx context.Context, _ llm.CompletionRequest) (<-chan llm.Chunk, error) {
			ch := make(chan llm.Chunk)
			go func() {
				defer close(ch)
				select {
				case ch <- llm.Chunk{Text: "partial"}:
				case <-ctx.Done():
					return
				}
				select {
				case <-release:
				case <-ctx.Done():
				}
			}()
			return ch, nil
		},
	}
	defer close(release)

	c := newClient(t, &countingFactory{p: p})
	c.Configure(testConfig)

	s, err := c.Translate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if u := <-s.Updates(); u != "partial" {
		t.Fatalf("first update = %q", u)
	}
	s.Cancel()
	s.Cancel()
	collect(t, s)
	if err := s.Err(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Err() = %v, want context.Canceled", err)
	}
}

func TestTranslate_InFlightKeepsConfig(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	p := &llmmock.Provider{
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
			ch := make(chan llm.Chunk, 1)
			go func() {
				defer close(ch)
				<-gate
				ch <- llm.Chunk{Text: req.SystemPrompt}
			}()
			return ch, nil
		},
	}
	c := newClient(t, &countingFactory{p: p})
	c.Configure(testConfig)

	s, err := c.Translate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	next := testConfig
	next.Instruction = persona.Pattaya.Instruction(true)
	c.Configure(next)
	close(gate)

	got := collect(t, s)
	if len(got) != 1 || got[0] != testConfig.Instruction {
		t.Fatalf("in-flight stream used %q, want the config it started with", got)
	}
}
