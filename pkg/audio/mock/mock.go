// Package mock provides in-memory implementations of [audio.Input] and
// [audio.Output] for use in unit tests.
//
// All mocks are safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/Pavlo4242/bluethai/pkg/audio"
)

// Input is a mock [audio.Input]. Each Open returns a fresh channel which the
// test feeds through Push.
type Input struct {
	mu sync.Mutex

	// OpenErr is returned by Open when non-nil.
	OpenErr error

	opens int
	ch    chan audio.Frame
}

// Open implements [audio.Input]. The channel is closed when ctx ends.
func (in *Input) Open(ctx context.Context) (<-chan audio.Frame, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.opens++
	if in.OpenErr != nil {
		return nil, in.OpenErr
	}
	src := make(chan audio.Frame, 16)
	in.ch = src
	out := make(chan audio.Frame, 16)
	go func() {
		defer close(out)
		for {
			select {
			case f := <-src:
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Push delivers data as a speech-format frame to the most recent Open. It
// reports false if nothing has been opened yet.
func (in *Input) Push(data []byte) bool {
	in.mu.Lock()
	ch := in.ch
	in.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- audio.Frame{Data: data, Format: audio.Speech}
	return true
}

// Opens returns the number of Open calls.
func (in *Input) Opens() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.opens
}

// Output is a mock [audio.Output] that records what was played.
type Output struct {
	mu sync.Mutex

	// PlayErr is returned by Play after the stream is drained.
	PlayErr error

	plays  [][]byte
	format audio.Format
}

// Play implements [audio.Output]. It records the concatenated pcm.
func (o *Output) Play(ctx context.Context, format audio.Format, pcm <-chan []byte) error {
	var buf []byte
	for chunk := range pcm {
		buf = append(buf, chunk...)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.plays = append(o.plays, buf)
	o.format = format
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return o.PlayErr
}

// Plays returns one byte slice per completed Play call.
func (o *Output) Plays() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]byte(nil), o.plays...)
}

// Format returns the format of the last Play call.
func (o *Output) Format() audio.Format {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.format
}

var (
	_ audio.Input  = (*Input)(nil)
	_ audio.Output = (*Output)(nil)
)
