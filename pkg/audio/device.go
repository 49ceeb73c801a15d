package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// frameDuration is the length of audio carried by each captured Frame.
const frameDuration = 20 * time.Millisecond

// Input is a capture device.
type Input interface {
	// Open starts capturing. Frames flow until ctx is cancelled or the device
	// ends, after which the channel is closed.
	Open(ctx context.Context) (<-chan Frame, error)
}

// Output is a playback device.
type Output interface {
	// Play writes every chunk of pcm in the given format to the device and
	// returns once pcm is closed and playback has finished, or ctx ends.
	Play(ctx context.Context, format Format, pcm <-chan []byte) error
}

// ReaderInput captures from an io.Reader holding raw PCM, such as a pipe
// from an external recorder or a recorded file.
type ReaderInput struct {
	R      io.Reader
	Format Format
}

// Open implements [Input]. The reader is consumed once.
func (in *ReaderInput) Open(ctx context.Context) (<-chan Frame, error) {
	if in.R == nil {
		return nil, errors.New("audio: reader input has no reader")
	}
	return readFrames(ctx, in.R, in.Format, nil), nil
}

// readFrames slices r into frameDuration frames. done, if non-nil, runs after
// the last frame is delivered.
func readFrames(ctx context.Context, r io.Reader, f Format, done func()) <-chan Frame {
	out := make(chan Frame, 16)
	size := f.FrameBytes(frameDuration)
	if size <= 0 {
		size = 640
	}
	go func() {
		defer close(out)
		if done != nil {
			defer done()
		}
		for {
			buf := make([]byte, size)
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				// Keep partial tails sample aligned.
				n -= n % (2 * max(f.Channels, 1))
				select {
				case out <- Frame{Data: buf[:n], Format: f}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil || ctx.Err() != nil {
				return
			}
		}
	}()
	return out
}

// FFmpegInput captures the default microphone through ffmpeg, emitting raw
// PCM in Format.
type FFmpegInput struct {
	// Command is the ffmpeg binary. Default "ffmpeg".
	Command string

	// InputFormat is the ffmpeg demuxer ("pulse", "alsa", "avfoundation").
	// Default "pulse".
	InputFormat string

	// Device is the capture device name. Default "default".
	Device string

	Format Format
}

// Open implements [Input]. The ffmpeg process is interrupted when ctx ends.
func (in *FFmpegInput) Open(ctx context.Context) (<-chan Frame, error) {
	command := orDefault(in.Command, "ffmpeg")
	format := in.Format
	if format.SampleRate <= 0 || format.Channels <= 0 {
		format = Speech
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", orDefault(in.InputFormat, "pulse"),
		"-i", orDefault(in.Device, "default"),
		"-ac", strconv.Itoa(format.Channels),
		"-ar", strconv.Itoa(format.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 1200 * time.Millisecond
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start ffmpeg: %w", err)
	}
	return readFrames(ctx, stdout, format, func() { _ = cmd.Wait() }), nil
}

// CommandOutput plays PCM by piping it into an external player's stdin. The
// arguments may reference {rate} and {channels}, which are replaced with the
// stream's format, e.g.
//
//	ffplay -nodisp -autoexit -loglevel quiet -f s16le -ar {rate} -ac {channels} -
type CommandOutput struct {
	Command string
	Args    []string
}

// Play implements [Output].
func (o *CommandOutput) Play(ctx context.Context, format Format, pcm <-chan []byte) error {
	if o.Command == "" {
		Drain(pcm)
		return errors.New("audio: no player command configured")
	}
	r := strings.NewReplacer(
		"{rate}", strconv.Itoa(format.SampleRate),
		"{channels}", strconv.Itoa(format.Channels),
	)
	args := make([]string, len(o.Args))
	for i, a := range o.Args {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, o.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		Drain(pcm)
		return fmt.Errorf("audio: player stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		Drain(pcm)
		return fmt.Errorf("audio: start player: %w", err)
	}

	var writeErr error
	for chunk := range pcm {
		if writeErr != nil {
			continue
		}
		if _, err := stdin.Write(chunk); err != nil {
			writeErr = err
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio: player: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if writeErr != nil {
		return fmt.Errorf("audio: write to player: %w", writeErr)
	}
	return nil
}

// Discard is an [Output] that drops all audio.
type Discard struct{}

// Play implements [Output].
func (Discard) Play(_ context.Context, _ Format, pcm <-chan []byte) error {
	Drain(pcm)
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var (
	_ Input  = (*ReaderInput)(nil)
	_ Input  = (*FFmpegInput)(nil)
	_ Output = (*CommandOutput)(nil)
	_ Output = Discard{}
)
