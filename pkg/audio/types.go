// Package audio moves raw PCM between local sound devices and the speech
// providers.
//
// All audio is signed 16-bit little-endian PCM. An [Input] yields [Frame]s
// from a microphone, an [Output] plays a stream of PCM chunks. [Converter]
// adapts frames between sample rates and channel layouts so that a 48 kHz
// stereo capture device can feed a 16 kHz mono recogniser.
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Speech is the format the recognisers and synthesisers exchange: 16 kHz mono.
var Speech = Format{SampleRate: 16000, Channels: 1}

// FrameBytes returns the number of bytes covering d of audio in this format.
// The result is always a whole number of sample frames.
func (f Format) FrameBytes(d time.Duration) int {
	samples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return samples * f.Channels * 2
}

// String returns e.g. "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Frame is one chunk of captured audio.
type Frame struct {
	// Data is interleaved 16-bit little-endian PCM.
	Data []byte

	Format Format
}
