package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tripvoice/internal/logging"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
)

// Announcer voices assistant replies. speech.Output satisfies it.
type Announcer interface {
	Speak(ctx context.Context, text string)
}

// Timeouts bounds every external call. A timeout counts as a transport failure.
type Timeouts struct {
	Analyze time.Duration
	Explain time.Duration
	Plan    time.Duration
	Export  time.Duration
}

// DefaultTimeouts are used for any zero field.
var DefaultTimeouts = Timeouts{
	Analyze: 30 * time.Second,
	Explain: 30 * time.Second,
	Plan:    120 * time.Second,
	Export:  60 * time.Second,
}

const (
	defaultQueueSize  = 32
	defaultSpeechSize = 16
)

// Orchestrator owns the conversation state and drives the backend.
//
// Conversation operations are queued and dispatched one at a time by a single
// worker, in the order they were accepted, so responses always land in the log
// in submission order. Exports run beside the queue because they never write state.
type Orchestrator struct {
	backend   ports.ConversationBackend
	announcer Announcer
	sink      ports.DocumentSink
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	timeouts  Timeouts
	queueSize int

	mu        sync.Mutex
	state     *domain.State
	watermark uint64
	subs      map[int]chan *domain.State
	nextSub   int

	submitMu sync.Mutex
	lastSeq  uint64
	closed   bool

	queue   chan event
	speech  chan string
	stop    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	exports sync.WaitGroup
	workers sync.WaitGroup
	once    sync.Once
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithAnnouncer forwards assistant replies to a speech output.
func WithAnnouncer(a Announcer) Option {
	return func(o *Orchestrator) {
		o.announcer = a
	}
}

// WithDocumentSink surfaces exported documents.
func WithDocumentSink(sink ports.DocumentSink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTimeouts overrides the per-call timeouts. Zero fields keep the defaults.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) {
		if t.Analyze > 0 {
			o.timeouts.Analyze = t.Analyze
		}
		if t.Explain > 0 {
			o.timeouts.Explain = t.Explain
		}
		if t.Plan > 0 {
			o.timeouts.Plan = t.Plan
		}
		if t.Export > 0 {
			o.timeouts.Export = t.Export
		}
	}
}

// WithQueueSize sets how many operations may wait behind the one in flight.
func WithQueueSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithSpeechDisabled starts the conversation with spoken replies off.
func WithSpeechDisabled() Option {
	return func(o *Orchestrator) {
		o.state.TTSEnabled = false
	}
}

// New creates an Orchestrator and starts its dispatch worker.
// Call Close to stop it.
func New(backend ports.ConversationBackend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:   backend,
		logger:    logging.NewNop(),
		timeouts:  DefaultTimeouts,
		queueSize: defaultQueueSize,
		state:     domain.NewState(),
		subs:      make(map[int]chan *domain.State),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.queue = make(chan event, o.queueSize)
	o.speech = make(chan string, defaultSpeechSize)
	o.ctx, o.cancel = context.WithCancel(context.Background())
	if t, ok := o.announcer.(interface{ SetEnabled(bool) }); ok {
		t.SetEnabled(o.state.TTSEnabled)
	}

	o.workers.Add(2)
	go o.run()
	go o.speak()
	return o
}

// Close stops the worker, cancels the call in flight and resolves queued
// operations as stale. It waits for running exports.
func (o *Orchestrator) Close() error {
	o.once.Do(func() {
		close(o.stop)
		o.cancel()

		o.submitMu.Lock()
		o.closed = true
		o.submitMu.Unlock()
	})
	o.workers.Wait()
	o.exports.Wait()

	// Nothing is enqueued once closed is set, so the queue can be drained safely.
	for {
		select {
		case ev := <-o.queue:
			ev.ticket.resolve(Result{Outcome: OutcomeStale, Err: domain.ErrClosed})
		default:
			return nil
		}
	}
}

// State returns a snapshot of the conversation.
func (o *Orchestrator) State() *domain.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Snapshot()
}

// Subscribe delivers a snapshot after every mutation. Slow subscribers only
// see the latest snapshot. The returned function unsubscribes.
func (o *Orchestrator) Subscribe() (<-chan *domain.State, func()) {
	ch := make(chan *domain.State, 1)

	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
			close(ch)
		})
	}
}

// SubmitUtterance accepts user input. Blank and placeholder input is dropped
// with domain.ErrIgnoredInput before it can reach the log or the network.
func (o *Orchestrator) SubmitUtterance(ctx context.Context, text string, source domain.Source) (*Ticket, error) {
	clean, err := domain.Admit(text, source)
	if err != nil {
		o.emitDiscard(ctx, 0, domain.DiscardPlaceholder, err.Error())
		o.logger.Debug("Utterance ignored", "source", source, "err", err)
		return nil, err
	}

	return o.enqueue(ctx, func(seq uint64) event {
		return event{
			kind:      eventUtterance,
			utterance: domain.Utterance{Text: clean, Source: source, Sequence: seq},
		}
	})
}

// ConfirmItinerary requests planning from the current draft. It is rejected
// with domain.ErrNotConfirmable unless, at dispatch time, the draft is complete
// and no itinerary exists.
func (o *Orchestrator) ConfirmItinerary(ctx context.Context) (*Ticket, error) {
	return o.enqueue(ctx, func(uint64) event {
		return event{kind: eventConfirm}
	})
}

// RequestExport renders the current itinerary and delivers it to the document
// sink. Failures are logged and reported on the ticket, never added to the log.
func (o *Orchestrator) RequestExport(ctx context.Context) (*Ticket, error) {
	o.submitMu.Lock()
	defer o.submitMu.Unlock()
	if o.closed {
		return nil, domain.ErrClosed
	}

	o.mu.Lock()
	itinerary := o.state.Itinerary
	o.mu.Unlock()
	if itinerary == nil {
		return nil, domain.ErrNoItinerary
	}

	o.lastSeq++
	ticket := newTicket(o.lastSeq)
	o.exports.Add(1)
	go func() {
		defer o.exports.Done()
		ticket.resolve(o.export(ticket.seq, itinerary))
	}()
	return ticket, nil
}

// StartNewTrip clears the itinerary and the draft so the next utterance
// gathers constraints again. Operations accepted before the call resolve as stale.
func (o *Orchestrator) StartNewTrip(ctx context.Context) error {
	o.submitMu.Lock()
	defer o.submitMu.Unlock()
	if o.closed {
		return domain.ErrClosed
	}

	o.mu.Lock()
	o.watermark = o.lastSeq
	o.mu.Unlock()

	o.update(ctx, 0, func(s *domain.State) bool {
		resetTrip(s)
		return true
	})
	o.logger.Info("New trip started", "watermark", o.lastSeq)
	return nil
}

// SetSpeechEnabled toggles spoken replies.
func (o *Orchestrator) SetSpeechEnabled(ctx context.Context, enabled bool) {
	o.update(ctx, 0, func(s *domain.State) bool {
		setSpeech(s, enabled)
		return true
	})
	if t, ok := o.announcer.(interface{ SetEnabled(bool) }); ok {
		t.SetEnabled(enabled)
	}
}

// enqueue assigns the next sequence number and queues the event.
func (o *Orchestrator) enqueue(ctx context.Context, build func(seq uint64) event) (*Ticket, error) {
	o.submitMu.Lock()
	defer o.submitMu.Unlock()
	if o.closed {
		return nil, domain.ErrClosed
	}

	seq := o.lastSeq + 1
	ev := build(seq)
	ev.seq = seq
	ev.ticket = newTicket(seq)

	select {
	case o.queue <- ev:
		o.lastSeq = seq
		return ev.ticket, nil
	case <-o.stop:
		return nil, domain.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// update runs a reducer under the state lock and publishes the result.
// A non-zero seq at or below the watermark is stale and leaves state untouched.
// The reducer returns false when it decided not to change anything.
func (o *Orchestrator) update(ctx context.Context, seq uint64, fn func(s *domain.State) bool) bool {
	o.mu.Lock()
	if seq != 0 && seq <= o.watermark {
		o.mu.Unlock()
		return false
	}

	before := len(o.state.Turns)
	if !fn(o.state) {
		o.mu.Unlock()
		return true
	}
	o.state.Version++

	appended := make([]domain.Turn, len(o.state.Turns)-before)
	copy(appended, o.state.Turns[before:])
	snap := o.state.Snapshot()
	for _, ch := range o.subs {
		publish(ch, snap.Snapshot())
	}
	o.mu.Unlock()

	for i, turn := range appended {
		o.emitTurn(ctx, seq, turn, before+i)
	}
	return true
}

// publish delivers the latest snapshot, replacing one the subscriber has not read yet.
func publish(ch chan *domain.State, s *domain.State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// announce queues a reply for the speech worker without blocking dispatch.
func (o *Orchestrator) announce(text string) {
	if o.announcer == nil || text == "" {
		return
	}
	o.mu.Lock()
	enabled := o.state.TTSEnabled
	o.mu.Unlock()
	if !enabled {
		return
	}
	select {
	case o.speech <- text:
	default:
		o.logger.Warn("Speech queue full, reply not spoken", "chars", len(text))
	}
}

func (o *Orchestrator) speak() {
	defer o.workers.Done()
	for {
		select {
		case <-o.stop:
			return
		case text := <-o.speech:
			if o.announcer != nil {
				o.announcer.Speak(o.ctx, text)
			}
		}
	}
}

func (o *Orchestrator) emitTurn(ctx context.Context, seq uint64, turn domain.Turn, index int) {
	o.logger.Debug("Turn appended", "seq", seq, "role", turn.Role, "index", index)
	if o.hooks.OnTurn != nil {
		o.hooks.OnTurn(ctx, &domain.TurnEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTurn, Sequence: seq},
			Turn:      turn,
			Index:     index,
		})
	}
}

func (o *Orchestrator) emitDiscard(ctx context.Context, seq uint64, reason domain.DiscardReason, detail string) {
	if o.hooks.OnDiscard != nil {
		o.hooks.OnDiscard(ctx, &domain.DiscardEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventDiscard, Sequence: seq},
			Reason:    reason,
			Detail:    detail,
		})
	}
}
