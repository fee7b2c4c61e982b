// Package capture records one microphone session at a time and turns it into a transcript.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/tripvoice/internal/logging"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/google/uuid"
)

// Phase is the position of the capture state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhaseUploading Phase = "uploading"
)

// DefaultTimeout bounds the transcription upload.
const DefaultTimeout = 60 * time.Second

// Handle identifies a recording session.
type Handle struct {
	ID        string
	StartedAt time.Time
}

// TranscriptHandler receives every transcript produced by Stop, including the
// error sentinel. Empty recordings never reach it.
type TranscriptHandler func(ctx context.Context, transcript string)

// Capture owns the microphone for the duration of one recording.
// Transitions: Idle -> Recording -> Uploading -> Idle.
type Capture struct {
	mic         ports.Microphone
	transcriber ports.Transcriber
	onText      TranscriptHandler
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	timeout     time.Duration

	mu     sync.Mutex
	phase  Phase
	active *recording
}

type recording struct {
	handle  Handle
	stream  ports.AudioStream
	buf     bytes.Buffer
	done    chan struct{}
	readErr error
}

// Option configures the Capture.
type Option func(*Capture)

// WithTranscriptHandler forwards transcripts, typically into the orchestrator.
func WithTranscriptHandler(h TranscriptHandler) Option {
	return func(c *Capture) {
		c.onText = h
	}
}

// WithLifecycleHooks reports transcription calls.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Capture) {
		c.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Capture) {
		c.logger = logger
	}
}

// WithTimeout bounds the transcription upload.
func WithTimeout(d time.Duration) Option {
	return func(c *Capture) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates an idle Capture. mic may be nil when audio only arrives through Upload.
func New(mic ports.Microphone, transcriber ports.Transcriber, opts ...Option) *Capture {
	c := &Capture{
		mic:         mic,
		transcriber: transcriber,
		logger:      logging.NewNop(),
		timeout:     DefaultTimeout,
		phase:       PhaseIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase reports the current state.
func (c *Capture) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Active returns the handle of the recording in progress.
func (c *Capture) Active() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Handle{}, false
	}
	return c.active.handle, true
}

// Start acquires the microphone and begins buffering audio.
// It fails with domain.ErrCaptureBusy unless the capture is idle.
func (c *Capture) Start(ctx context.Context) (Handle, error) {
	if c.mic == nil {
		return Handle{}, fmt.Errorf("no microphone configured: %w", domain.ErrMicrophoneDenied)
	}

	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return Handle{}, domain.ErrCaptureBusy
	}
	// Claim the device before opening it so a concurrent Start sees Recording.
	c.phase = PhaseRecording
	c.mu.Unlock()

	stream, err := c.mic.Open(ctx)
	if err != nil {
		c.setPhase(PhaseIdle)
		c.logger.Warn("Microphone unavailable", "err", err)
		return Handle{}, fmt.Errorf("failed to open microphone: %w", err)
	}

	rec := &recording{
		handle: Handle{ID: uuid.NewString(), StartedAt: time.Now()},
		stream: stream,
		done:   make(chan struct{}),
	}
	go rec.pump()

	c.mu.Lock()
	c.active = rec
	c.mu.Unlock()

	c.logger.Info("Recording started", "capture_id", rec.handle.ID)
	return rec.handle, nil
}

// Stop releases the microphone, uploads what was captured and returns the transcript.
// An empty recording yields an empty transcript and no handler call. A failed
// upload yields domain.ErrorTranscript together with the cause.
func (c *Capture) Stop(ctx context.Context, h Handle) (string, error) {
	c.mu.Lock()
	if c.phase != PhaseRecording || c.active == nil || c.active.handle.ID != h.ID {
		c.mu.Unlock()
		return "", domain.ErrNoActiveCapture
	}
	rec := c.active
	c.active = nil
	c.phase = PhaseUploading
	c.mu.Unlock()
	defer c.setPhase(PhaseIdle)

	if err := rec.stream.Close(); err != nil {
		c.logger.Debug("Microphone close reported an error", "capture_id", h.ID, "err", err)
	}
	<-rec.done
	if rec.readErr != nil {
		c.logger.Debug("Microphone stream ended with error", "capture_id", h.ID, "err", rec.readErr)
	}

	if rec.buf.Len() == 0 {
		c.logger.Info("Empty recording discarded", "capture_id", h.ID)
		return "", nil
	}

	return c.finish(ctx, h.ID, ports.Audio{Data: rec.buf.Bytes(), MimeType: rec.stream.MimeType()})
}

// Upload transcribes audio recorded elsewhere, such as in a browser, with the
// same outcomes as Stop. It fails with domain.ErrCaptureBusy unless idle.
func (c *Capture) Upload(ctx context.Context, audio ports.Audio) (string, error) {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return "", domain.ErrCaptureBusy
	}
	c.phase = PhaseUploading
	c.mu.Unlock()
	defer c.setPhase(PhaseIdle)

	id := uuid.NewString()
	if len(audio.Data) == 0 {
		c.logger.Info("Empty upload discarded", "capture_id", id)
		return "", nil
	}
	return c.finish(ctx, id, audio)
}

func (c *Capture) finish(ctx context.Context, id string, audio ports.Audio) (string, error) {
	if audio.MimeType == "" {
		audio.MimeType = domain.DefaultRecordingMIME
	}

	transcript, err := c.transcribe(ctx, audio)
	if err != nil {
		c.logger.Error("Transcription failed", "capture_id", id, "err", err)
		c.deliver(ctx, domain.ErrorTranscript)
		return domain.ErrorTranscript, fmt.Errorf("failed to transcribe recording: %w", err)
	}

	transcript = strings.TrimSpace(transcript)
	c.logger.Info("Recording transcribed", "capture_id", id, "bytes", len(audio.Data), "chars", len(transcript))
	if transcript != "" {
		c.deliver(ctx, transcript)
	}
	return transcript, nil
}

// Toggle starts a recording when idle and stops the active one otherwise.
// It returns the transcript when a recording was stopped.
func (c *Capture) Toggle(ctx context.Context) (started bool, transcript string, err error) {
	if h, ok := c.Active(); ok {
		transcript, err = c.Stop(ctx, h)
		return false, transcript, err
	}
	_, err = c.Start(ctx)
	return err == nil, "", err
}

func (c *Capture) transcribe(ctx context.Context, audio ports.Audio) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.hooks.OnCallStart != nil {
		c.hooks.OnCallStart(ctx, &domain.CallEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCallStart},
			Endpoint:  domain.EndpointTranscribe,
		})
	}
	start := time.Now()
	text, err := c.transcriber.Transcribe(ctx, audio)
	if c.hooks.OnCallEnd != nil {
		c.hooks.OnCallEnd(ctx, &domain.CallEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCallEnd},
			Endpoint:  domain.EndpointTranscribe,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	return text, err
}

func (c *Capture) deliver(ctx context.Context, transcript string) {
	if c.onText != nil {
		c.onText(ctx, transcript)
	}
}

func (c *Capture) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// pump buffers the stream until it is closed.
func (r *recording) pump() {
	defer close(r.done)
	_, err := io.Copy(&r.buf, r.stream)
	if err != nil && err != io.EOF {
		r.readErr = err
	}
}
