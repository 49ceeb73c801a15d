package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Pavlo4242/bluethai/internal/observe"
	"github.com/Pavlo4242/bluethai/pkg/audio"
	"github.com/Pavlo4242/bluethai/pkg/provider/tts"
	"github.com/Pavlo4242/bluethai/pkg/types"
)

// Voices names the configured voice per language. An empty ID selects the
// first catalogue voice that speaks the language.
type Voices struct {
	English string
	Thai    string
}

// OutputOption configures a [TTSOutput].
type OutputOption func(*TTSOutput)

// WithOutputMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithOutputMetrics(m *observe.Metrics) OutputOption {
	return func(o *TTSOutput) { o.metrics = m }
}

// WithProviderName sets the provider label used in metrics.
func WithProviderName(name string) OutputOption {
	return func(o *TTSOutput) { o.providerName = name }
}

// WithFormat sets the PCM format the provider produces. Default [audio.Speech].
func WithFormat(f audio.Format) OutputOption {
	return func(o *TTSOutput) { o.format = f }
}

// TTSOutput speaks text with a streaming TTS provider and plays the audio on
// a local device. A new utterance interrupts the one playing.
type TTSOutput struct {
	provider     tts.Provider
	player       audio.Output
	want         Voices
	metrics      *observe.Metrics
	providerName string
	format       audio.Format

	mu     sync.Mutex
	voices map[types.Language]types.VoiceProfile
	cancel context.CancelFunc
	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// NewTTSOutput returns an Output synthesising with provider and playing on player.
func NewTTSOutput(provider tts.Provider, player audio.Output, voices Voices, opts ...OutputOption) *TTSOutput {
	base, stop := context.WithCancel(context.Background())
	o := &TTSOutput{
		provider:     provider,
		player:       player,
		want:         voices,
		providerName: "tts",
		format:       audio.Speech,
		base:         base,
		stop:         stop,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Init implements [Output]. It resolves a voice for each language from the
// provider's catalogue.
func (o *TTSOutput) Init(ctx context.Context, ready func(Readiness)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		r := o.resolve(ctx)
		observe.Logger(ctx).Info("speech: synthesiser ready",
			"ok", r.OK, "thai", r.Thai, "english", r.English)
		ready(r)
	}()
}

func (o *TTSOutput) resolve(ctx context.Context) Readiness {
	catalogue, err := o.provider.ListVoices(ctx)
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, o.providerName, "tts", "error")
		o.metrics.RecordProviderError(ctx, o.providerName, "tts")
		observe.Logger(ctx).Error("speech: list voices failed", "err", err)
		return Readiness{}
	}
	o.metrics.RecordProviderRequest(ctx, o.providerName, "tts", "ok")

	voices := make(map[types.Language]types.VoiceProfile, 2)
	for lang, id := range map[types.Language]string{types.English: o.want.English, types.Thai: o.want.Thai} {
		if v, ok := pickVoice(catalogue, lang, id); ok {
			voices[lang] = v
		}
	}

	o.mu.Lock()
	o.voices = voices
	o.mu.Unlock()

	_, en := voices[types.English]
	_, th := voices[types.Thai]
	return Readiness{OK: true, English: en, Thai: th}
}

// pickVoice finds id in the catalogue, or the first voice speaking lang when
// id is empty.
func pickVoice(catalogue []types.VoiceProfile, lang types.Language, id string) (types.VoiceProfile, bool) {
	for _, v := range catalogue {
		if id != "" && v.ID != id {
			continue
		}
		if v.Speaks(lang) {
			return v, true
		}
	}
	return types.VoiceProfile{}, false
}

// Speak implements [Output].
func (o *TTSOutput) Speak(text string, isEnglish bool) {
	lang := types.InputLanguage(isEnglish)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.base.Err() != nil {
		return
	}
	voice, ok := o.voices[lang]
	if !ok {
		observe.Logger(o.base).Warn("speech: no voice for language", "lang", lang.Code())
		return
	}
	if o.cancel != nil {
		o.cancel()
	}
	ctx, cancel := context.WithCancel(o.base)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.say(ctx, text, voice)
	}()
}

func (o *TTSOutput) say(ctx context.Context, text string, voice types.VoiceProfile) {
	start := time.Now()
	fragments := make(chan string, 1)
	fragments <- text
	close(fragments)

	pcm, err := o.provider.SynthesizeStream(ctx, fragments, voice)
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, o.providerName, "tts", "error")
		o.metrics.RecordProviderError(ctx, o.providerName, "tts")
		observe.Logger(ctx).Warn("speech: synthesis failed", "voice", voice.ID, "err", err)
		return
	}
	o.metrics.RecordProviderRequest(ctx, o.providerName, "tts", "ok")

	if err := o.player.Play(ctx, o.format, pcm); err != nil && !errors.Is(err, context.Canceled) {
		observe.Logger(ctx).Warn("speech: playback failed", "err", err)
		return
	}
	o.metrics.RecordSynthesis(context.WithoutCancel(ctx), o.providerName, time.Since(start))
}

// Close implements [Output].
func (o *TTSOutput) Close() error {
	o.mu.Lock()
	o.stop()
	o.mu.Unlock()
	o.wg.Wait()
	return nil
}

var _ Output = (*TTSOutput)(nil)
