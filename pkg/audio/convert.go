package audio

import (
	"log/slog"
	"sync"
)

// Converter converts frames to a target format. It logs a warning on the
// first format mismatch and drops frames that are not sample aligned.
// Create one per stream; not designed for shared use across goroutines.
type Converter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert converts a frame to the target format. A frame already in the
// target format is returned unchanged. The channel count is reduced before
// resampling and raised after it, so the resampler always sees the fewest
// channels.
func (c *Converter) Convert(frame Frame) Frame {
	src := frame.Format
	if src.Channels <= 0 || len(frame.Data)%(2*src.Channels) != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio: misaligned PCM frame, dropping",
				"bytes", len(frame.Data),
				"format", src.String(),
			)
		})
		return Frame{Format: c.Target}
	}
	if src == c.Target {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Info("audio: converting capture format",
			"from", src.String(),
			"to", c.Target.String(),
		)
	})

	pcm := frame.Data
	channels := src.Channels
	if c.Target.Channels < channels {
		pcm = Downmix(pcm, channels)
		channels = 1
	}
	pcm = Resample(pcm, channels, src.SampleRate, c.Target.SampleRate)
	if c.Target.Channels > channels {
		pcm = Upmix(pcm, c.Target.Channels)
	}
	return Frame{Data: pcm, Format: c.Target}
}

// ConvertStream wraps an input channel with a conversion goroutine. The
// returned channel is closed when in closes. Frames that convert to nothing
// are dropped.
func ConvertStream(in <-chan Frame, target Format) <-chan Frame {
	out := make(chan Frame, cap(in))
	go func() {
		defer close(out)
		conv := Converter{Target: target}
		for frame := range in {
			converted := conv.Convert(frame)
			if len(converted.Data) == 0 {
				continue
			}
			out <- converted
		}
	}()
	return out
}

func sampleAt(pcm []byte, i int) int32 {
	return int32(int16(pcm[2*i]) | int16(pcm[2*i+1])<<8)
}

func putSample(pcm []byte, i int, v int32) {
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	pcm[2*i] = byte(v)
	pcm[2*i+1] = byte(v >> 8)
}

// Downmix averages each interleaved frame of the given channel count into a
// single mono sample.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for f := range frames {
		var sum int32
		for c := range channels {
			sum += sampleAt(pcm, f*channels+c)
		}
		putSample(out, f, sum/int32(channels))
	}
	return out
}

// Upmix copies each mono sample into every one of channels.
func Upmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	samples := len(pcm) / 2
	out := make([]byte, samples*2*channels)
	for i := range samples {
		for c := range channels {
			out[2*(i*channels+c)] = pcm[2*i]
			out[2*(i*channels+c)+1] = pcm[2*i+1]
		}
	}
	return out
}

// Resample converts interleaved PCM from srcRate to dstRate using linear
// interpolation per channel. Invalid rates, equal rates and inputs shorter
// than one frame return pcm unchanged.
func Resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 || srcRate == dstRate {
		return pcm
	}
	srcFrames := len(pcm) / (2 * channels)
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*2*channels)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= srcFrames {
			next = idx
		}
		for c := range channels {
			s0 := float64(sampleAt(pcm, idx*channels+c))
			s1 := float64(sampleAt(pcm, next*channels+c))
			putSample(out, i*channels+c, int32(s0*(1-frac)+s1*frac))
		}
	}
	return out
}
