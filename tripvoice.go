package tripvoice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tripvoice/internal/logging"
	"github.com/aretw0/tripvoice/internal/orchestrator"
	"github.com/aretw0/tripvoice/pkg/capture"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/aretw0/tripvoice/pkg/speech"
)

// Ticket tracks an accepted operation until it resolves.
type Ticket = orchestrator.Ticket

// Result describes how an operation resolved.
type Result = orchestrator.Result

// Outcome is the final disposition of an operation.
type Outcome = orchestrator.Outcome

const (
	OutcomeApplied  = orchestrator.OutcomeApplied
	OutcomeFailed   = orchestrator.OutcomeFailed
	OutcomeStale    = orchestrator.OutcomeStale
	OutcomeRejected = orchestrator.OutcomeRejected
)

// Route is the path an operation took.
type Route = orchestrator.Route

const (
	RouteConstraints = orchestrator.RouteConstraints
	RouteQuestion    = orchestrator.RouteQuestion
	RoutePlanning    = orchestrator.RoutePlanning
	RouteExport      = orchestrator.RouteExport
)

// Timeouts bounds every external call. Zero fields keep the defaults.
type Timeouts struct {
	Analyze    time.Duration
	Explain    time.Duration
	Plan       time.Duration
	Export     time.Duration
	Transcribe time.Duration
	Synthesize time.Duration
}

// Assistant is the high-level entry point: one conversation, its voice input
// and its spoken replies.
type Assistant struct {
	orch    *orchestrator.Orchestrator
	speech  *speech.Output
	capture *capture.Capture

	transcriber ports.Transcriber
	mic         ports.Microphone
	synth       ports.Synthesizer
	player      ports.AudioPlayer
	local       ports.LocalVoice
	cache       ports.AudioCache
	cacheScope  string
	sink        ports.DocumentSink
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	timeouts    Timeouts
	vendor      string
	rate, pitch float64
	muted       bool

	voiceMu     sync.Mutex
	voiceTicket *Ticket
}

// Option defines a functional option for configuring the Assistant.
type Option func(*Assistant)

// WithTranscriber enables voice input through the given transcription service.
func WithTranscriber(t ports.Transcriber) Option {
	return func(a *Assistant) {
		a.transcriber = t
	}
}

// WithMicrophone sets the device used by StartRecording.
func WithMicrophone(m ports.Microphone) Option {
	return func(a *Assistant) {
		a.mic = m
	}
}

// WithSynthesizer sets the remote speech synthesis service.
func WithSynthesizer(s ports.Synthesizer) Option {
	return func(a *Assistant) {
		a.synth = s
	}
}

// WithAudioPlayer sets the device that plays synthesized replies.
func WithAudioPlayer(p ports.AudioPlayer) Option {
	return func(a *Assistant) {
		a.player = p
	}
}

// WithLocalVoice sets the on-device fallback voice.
func WithLocalVoice(v ports.LocalVoice) Option {
	return func(a *Assistant) {
		a.local = v
	}
}

// WithAudioCache keeps synthesized replies between calls.
func WithAudioCache(c ports.AudioCache) Option {
	return func(a *Assistant) {
		a.cache = c
	}
}

// WithCacheScope keys cached audio by the synthesizer that produced it.
func WithCacheScope(scope string) Option {
	return func(a *Assistant) {
		a.cacheScope = scope
	}
}

// WithDocumentSink sets where exported itineraries are delivered.
func WithDocumentSink(s ports.DocumentSink) Option {
	return func(a *Assistant) {
		a.sink = s
	}
}

// WithLifecycleHooks registers observability hooks on every component.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Assistant) {
		a.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// WithTimeouts overrides the per-call timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(a *Assistant) {
		a.timeouts = t
	}
}

// WithPreferredVendor sets the vendor favoured by fallback voice selection.
func WithPreferredVendor(vendor string) Option {
	return func(a *Assistant) {
		a.vendor = vendor
	}
}

// WithProsody sets the fallback voice rate and pitch.
func WithProsody(rate, pitch float64) Option {
	return func(a *Assistant) {
		a.rate, a.pitch = rate, pitch
	}
}

// WithSpeechDisabled starts with spoken replies off.
func WithSpeechDisabled() Option {
	return func(a *Assistant) {
		a.muted = true
	}
}

// New creates an Assistant around the conversation backend.
// Speech is wired when a synthesizer, a player or a local voice is given.
// Voice input is wired when a transcriber is given.
func New(backend ports.ConversationBackend, opts ...Option) *Assistant {
	a := &Assistant{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}

	var orchOpts []orchestrator.Option
	orchOpts = append(orchOpts,
		orchestrator.WithLogger(a.logger.With("component", "orchestrator")),
		orchestrator.WithLifecycleHooks(a.hooks),
		orchestrator.WithDocumentSink(a.sink),
		orchestrator.WithTimeouts(orchestrator.Timeouts{
			Analyze: a.timeouts.Analyze,
			Explain: a.timeouts.Explain,
			Plan:    a.timeouts.Plan,
			Export:  a.timeouts.Export,
		}),
	)

	if a.synth != nil || a.player != nil || a.local != nil {
		speechOpts := []speech.Option{
			speech.WithLogger(a.logger.With("component", "speech")),
			speech.WithLifecycleHooks(a.hooks),
			speech.WithTimeout(a.timeouts.Synthesize),
			speech.WithProsody(a.rate, a.pitch),
		}
		if a.local != nil {
			speechOpts = append(speechOpts, speech.WithLocalVoice(a.local))
		}
		if a.cache != nil {
			speechOpts = append(speechOpts, speech.WithCache(a.cache), speech.WithCacheScope(a.cacheScope))
		}
		if a.vendor != "" {
			speechOpts = append(speechOpts, speech.WithPreferredVendor(a.vendor))
		}
		a.speech = speech.New(a.synth, a.player, speechOpts...)
		orchOpts = append(orchOpts, orchestrator.WithAnnouncer(a.speech))
	}
	if a.muted {
		orchOpts = append(orchOpts, orchestrator.WithSpeechDisabled())
	}
	a.orch = orchestrator.New(backend, orchOpts...)

	if a.transcriber != nil {
		a.capture = capture.New(a.mic, a.transcriber,
			capture.WithLogger(a.logger.With("component", "capture")),
			capture.WithLifecycleHooks(a.hooks),
			capture.WithTimeout(a.timeouts.Transcribe),
			capture.WithTranscriptHandler(a.onTranscript),
		)
	}
	return a
}

// Close stops the conversation worker. Pending operations resolve as stale.
func (a *Assistant) Close() error {
	return a.orch.Close()
}

// State returns a snapshot of the conversation.
func (a *Assistant) State() *domain.State {
	return a.orch.State()
}

// Subscribe delivers a snapshot after every change. Call the returned function to stop.
func (a *Assistant) Subscribe() (<-chan *domain.State, func()) {
	return a.orch.Subscribe()
}

// Send submits typed text.
func (a *Assistant) Send(ctx context.Context, text string) (*Ticket, error) {
	return a.orch.SubmitUtterance(ctx, text, domain.SourceTyped)
}

// ConfirmItinerary asks the planner for an itinerary built from the complete draft.
func (a *Assistant) ConfirmItinerary(ctx context.Context) (*Ticket, error) {
	return a.orch.ConfirmItinerary(ctx)
}

// RequestExport renders the itinerary and delivers it to the document sink.
func (a *Assistant) RequestExport(ctx context.Context) (*Ticket, error) {
	return a.orch.RequestExport(ctx)
}

// StartNewTrip clears the itinerary and the draft, keeping the log.
func (a *Assistant) StartNewTrip(ctx context.Context) error {
	return a.orch.StartNewTrip(ctx)
}

// SetSpeechEnabled turns spoken replies on or off.
func (a *Assistant) SetSpeechEnabled(ctx context.Context, enabled bool) {
	a.orch.SetSpeechEnabled(ctx, enabled)
}

// VoiceEnabled reports whether voice input is wired.
func (a *Assistant) VoiceEnabled() bool {
	return a.capture != nil
}

// Recording reports whether a microphone session is active.
func (a *Assistant) Recording() bool {
	if a.capture == nil {
		return false
	}
	_, ok := a.capture.Active()
	return ok
}

// StartRecording opens the microphone.
func (a *Assistant) StartRecording(ctx context.Context) (capture.Handle, error) {
	if a.capture == nil {
		return capture.Handle{}, ErrVoiceDisabled
	}
	return a.capture.Start(ctx)
}

// StopRecording ends the active recording and submits its transcript.
// The ticket is nil when nothing reached the conversation (silence or a failed upload).
func (a *Assistant) StopRecording(ctx context.Context) (string, *Ticket, error) {
	if a.capture == nil {
		return "", nil, ErrVoiceDisabled
	}
	h, ok := a.capture.Active()
	if !ok {
		return "", nil, domain.ErrNoActiveCapture
	}
	transcript, err := a.capture.Stop(ctx, h)
	return transcript, a.takeVoiceTicket(), err
}

// SubmitAudio transcribes a recording made elsewhere and submits its transcript.
func (a *Assistant) SubmitAudio(ctx context.Context, audio ports.Audio) (string, *Ticket, error) {
	if a.capture == nil {
		return "", nil, ErrVoiceDisabled
	}
	transcript, err := a.capture.Upload(ctx, audio)
	return transcript, a.takeVoiceTicket(), err
}

// ErrVoiceDisabled is returned by voice operations when no transcriber is configured.
var ErrVoiceDisabled = errors.New("voice input is not configured")

func (a *Assistant) onTranscript(ctx context.Context, transcript string) {
	ticket, err := a.orch.SubmitUtterance(ctx, transcript, domain.SourceVoice)
	if err != nil {
		a.logger.Debug("Transcript not submitted", "err", err)
		return
	}
	a.voiceMu.Lock()
	a.voiceTicket = ticket
	a.voiceMu.Unlock()
}

func (a *Assistant) takeVoiceTicket() *Ticket {
	a.voiceMu.Lock()
	defer a.voiceMu.Unlock()
	t := a.voiceTicket
	a.voiceTicket = nil
	return t
}
