// Package speech voices assistant replies: remote synthesis first, on-device
// synthesis when the remote path or playback fails.
package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/tripvoice/internal/logging"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
)

// Fallback synthesis parameters. The rate is slightly above normal for responsiveness.
const (
	DefaultRate    = 1.1
	DefaultPitch   = 1.0
	DefaultTimeout = 20 * time.Second
	DefaultVendor  = "Google"
)

var errRemoteUnavailable = errors.New("remote synthesis not configured")

// Output speaks text. It never returns an error and never panics: every failure
// degrades to the fallback voice or to silence.
type Output struct {
	synth  ports.Synthesizer
	player ports.AudioPlayer
	local  ports.LocalVoice
	cache  ports.AudioCache
	scope  string

	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	timeout time.Duration
	rate    float64
	pitch   float64
	vendor  string

	enabled atomic.Bool
	mu      sync.Mutex
}

// Option configures the Output.
type Option func(*Output)

// WithLocalVoice sets the on-device fallback engine.
func WithLocalVoice(v ports.LocalVoice) Option {
	return func(o *Output) {
		o.local = v
	}
}

// WithCache stores synthesized audio so repeated replies skip the service.
func WithCache(c ports.AudioCache) Option {
	return func(o *Output) {
		o.cache = c
	}
}

// WithCacheScope names the synthesizer behind the cache, usually its base URL.
// Audio cached under one scope is never replayed under another.
func WithCacheScope(scope string) Option {
	return func(o *Output) {
		o.scope = scope
	}
}

// WithPreferredVendor sets the vendor name that wins voice selection ties.
func WithPreferredVendor(vendor string) Option {
	return func(o *Output) {
		o.vendor = vendor
	}
}

// WithProsody overrides the fallback rate and pitch. Non-positive values keep the defaults.
func WithProsody(rate, pitch float64) Option {
	return func(o *Output) {
		if rate > 0 {
			o.rate = rate
		}
		if pitch > 0 {
			o.pitch = pitch
		}
	}
}

// WithTimeout bounds the remote synthesis call.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLifecycleHooks reports synthesis calls and the path each reply took.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Output) {
		o.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Output) {
		o.logger = logger
	}
}

// New creates an enabled Output. synth and player may be nil, in which case
// every reply goes straight to the fallback voice.
func New(synth ports.Synthesizer, player ports.AudioPlayer, opts ...Option) *Output {
	o := &Output{
		synth:   synth,
		player:  player,
		logger:  logging.NewNop(),
		timeout: DefaultTimeout,
		rate:    DefaultRate,
		pitch:   DefaultPitch,
		vendor:  DefaultVendor,
	}
	o.enabled.Store(true)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetEnabled turns speech on or off. Disabled speech is a no-op.
func (o *Output) SetEnabled(enabled bool) {
	o.enabled.Store(enabled)
}

// Enabled reports whether replies are spoken.
func (o *Output) Enabled() bool {
	return o.enabled.Load()
}

// Speak voices text and blocks until playback ends. Calls are serialized.
func (o *Output) Speak(ctx context.Context, text string) {
	if !o.enabled.Load() || strings.TrimSpace(text) == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Speech panicked", "panic", r)
			o.emit(ctx, domain.SpeechSilent, fmt.Sprint(r), "")
		}
	}()

	path, err := o.speakRemote(ctx, text)
	if err == nil {
		o.emit(ctx, path, "", "")
		return
	}
	if ctx.Err() != nil {
		return
	}

	o.logger.Warn("Remote speech failed, using fallback voice", "err", err)
	o.speakLocal(ctx, text, err.Error())
}

func (o *Output) speakRemote(ctx context.Context, text string) (domain.SpeechPath, error) {
	if o.synth == nil || o.player == nil {
		return "", errRemoteUnavailable
	}

	key := CacheKey(o.scope, text)
	if o.cache != nil {
		audio, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			o.logger.Debug("Speech cache lookup failed", "err", err)
		}
		if ok {
			if err := o.player.Play(ctx, audio); err != nil {
				return "", fmt.Errorf("playback rejected: %w", err)
			}
			return domain.SpeechCached, nil
		}
	}

	audio, err := o.synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	if len(audio.Data) == 0 {
		return "", errors.New("synthesis returned no audio")
	}

	if o.cache != nil {
		if err := o.cache.Put(ctx, key, audio); err != nil {
			o.logger.Debug("Speech cache store failed", "err", err)
		}
	}

	if err := o.player.Play(ctx, audio); err != nil {
		return "", fmt.Errorf("playback rejected: %w", err)
	}
	return domain.SpeechRemote, nil
}

func (o *Output) synthesize(ctx context.Context, text string) (ports.Audio, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if o.hooks.OnCallStart != nil {
		o.hooks.OnCallStart(ctx, &domain.CallEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCallStart},
			Endpoint:  domain.EndpointSynthesize,
		})
	}
	start := time.Now()
	audio, err := o.synth.Synthesize(ctx, text)
	if o.hooks.OnCallEnd != nil {
		o.hooks.OnCallEnd(ctx, &domain.CallEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCallEnd},
			Endpoint:  domain.EndpointSynthesize,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	return audio, err
}

// speakLocal strips markdown, silences the previous utterance and speaks with
// the best ranked voice.
func (o *Output) speakLocal(ctx context.Context, text, reason string) {
	if o.local == nil {
		o.emit(ctx, domain.SpeechSilent, reason, "")
		return
	}

	clean := CleanMarkdown(text)
	if err := o.local.Cancel(); err != nil {
		o.logger.Debug("Cancel of local speech failed", "err", err)
	}

	voices, err := o.local.Voices(ctx)
	if err != nil || len(voices) == 0 {
		if err == nil {
			err = domain.ErrNoVoices
		}
		o.logger.Warn("No local voice available, staying silent", "err", err)
		o.emit(ctx, domain.SpeechSilent, err.Error(), "")
		return
	}

	voice, _ := SelectVoice(voices, o.vendor)
	err = o.local.Speak(ctx, ports.LocalUtterance{
		Text:  clean,
		Voice: voice,
		Rate:  o.rate,
		Pitch: o.pitch,
	})
	if err != nil {
		o.logger.Warn("Local speech failed", "voice", voice.Name, "err", err)
		o.emit(ctx, domain.SpeechSilent, err.Error(), voice.Name)
		return
	}
	o.emit(ctx, domain.SpeechFallback, reason, voice.Name)
}

func (o *Output) emit(ctx context.Context, path domain.SpeechPath, reason, voice string) {
	o.logger.Debug("Reply spoken", "path", path, "voice", voice)
	if o.hooks.OnSpeech != nil {
		o.hooks.OnSpeech(ctx, &domain.SpeechEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSpeech},
			Path:      path,
			Reason:    reason,
			Voice:     voice,
		})
	}
}

// CacheKey derives the audio cache key of a reply spoken by the synthesizer
// identified by scope. The remote voice is fixed per service, so the scope
// and the text are all that select the audio.
func CacheKey(scope, text string) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
