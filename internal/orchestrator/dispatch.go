package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
)

type eventKind int

const (
	eventUtterance eventKind = iota
	eventConfirm
)

type event struct {
	kind      eventKind
	seq       uint64
	utterance domain.Utterance
	ticket    *Ticket
}

// run is the single dispatch worker. At most one conversation call is in flight.
func (o *Orchestrator) run() {
	defer o.workers.Done()
	for {
		select {
		case <-o.stop:
			return
		case ev := <-o.queue:
			ev.ticket.resolve(o.dispatch(ev))
		}
	}
}

func (o *Orchestrator) dispatch(ev event) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Dispatch panicked", "seq", ev.seq, "panic", r)
			o.mu.Lock()
			o.state.Busy = domain.Busy{}
			o.state.Notice = ""
			o.mu.Unlock()
			res = Result{Outcome: OutcomeFailed, Err: fmt.Errorf("dispatch panic: %v", r)}
		}
	}()

	switch ev.kind {
	case eventConfirm:
		return o.handleConfirm(ev.seq)
	default:
		return o.handleUtterance(ev.seq, ev.utterance)
	}
}

func (o *Orchestrator) handleUtterance(seq uint64, u domain.Utterance) Result {
	var (
		route    Route
		existing *domain.Constraints
		history  []domain.Turn
	)
	applied := o.update(o.ctx, seq, func(s *domain.State) bool {
		route = Classify(s)
		if s.Constraints != nil {
			existing = s.Constraints.Clone()
		}
		history = append([]domain.Turn(nil), s.Turns...)
		acceptUtterance(s, u, route)
		return true
	})
	if !applied {
		return o.stale(seq, RouteConstraints)
	}

	if route == RouteQuestion {
		return o.explain(seq, u.Text)
	}
	return o.analyze(seq, ports.IntentRequest{
		Text:                u.Text,
		ExistingConstraints: existing,
		History:             history,
	})
}

func (o *Orchestrator) analyze(seq uint64, req ports.IntentRequest) Result {
	var fields map[string]any
	err := o.call(seq, domain.EndpointAnalyze, o.timeouts.Analyze, func(ctx context.Context) error {
		var err error
		fields, err = o.backend.AnalyzeIntent(ctx, req)
		return err
	})
	if err != nil {
		return o.fail(seq, RouteConstraints, domain.ReplyAnalyzeFailed, err)
	}

	var (
		reply    string
		mergeErr error
	)
	applied := o.update(o.ctx, seq, func(s *domain.State) bool {
		merged, err := domain.MergeConstraints(s.Constraints, fields)
		if err != nil {
			mergeErr = err
			failCall(s, RouteConstraints, domain.ReplyAnalyzeFailed)
			return true
		}
		reply = merged.Reply()
		applyConstraints(s, merged, reply)
		return true
	})
	if !applied {
		return o.stale(seq, RouteConstraints)
	}
	if mergeErr != nil {
		o.logger.Warn("Intent response rejected", "seq", seq, "err", mergeErr)
		return Result{Route: RouteConstraints, Outcome: OutcomeFailed, Reply: domain.ReplyAnalyzeFailed, Err: mergeErr}
	}

	o.announce(reply)
	return Result{Route: RouteConstraints, Outcome: OutcomeApplied, Reply: reply}
}

func (o *Orchestrator) explain(seq uint64, question string) Result {
	var answer string
	err := o.call(seq, domain.EndpointExplain, o.timeouts.Explain, func(ctx context.Context) error {
		var err error
		answer, err = o.backend.Explain(ctx, question)
		if err == nil && strings.TrimSpace(answer) == "" {
			err = domain.ErrEmptyAnswer
		}
		return err
	})
	if err != nil {
		return o.fail(seq, RouteQuestion, domain.ReplyExplainFailed, err)
	}

	applied := o.update(o.ctx, seq, func(s *domain.State) bool {
		applyAnswer(s, answer)
		return true
	})
	if !applied {
		return o.stale(seq, RouteQuestion)
	}

	o.announce(answer)
	return Result{Route: RouteQuestion, Outcome: OutcomeApplied, Reply: answer}
}

func (o *Orchestrator) handleConfirm(seq uint64) Result {
	var (
		draft    *domain.Constraints
		rejected bool
	)
	applied := o.update(o.ctx, seq, func(s *domain.State) bool {
		if !s.CanConfirm() {
			rejected = true
			return false
		}
		draft = s.Constraints.Clone()
		beginPlanning(s)
		return true
	})
	if !applied {
		return o.stale(seq, RoutePlanning)
	}
	if rejected {
		o.emitDiscard(o.ctx, seq, domain.DiscardRejected, domain.ErrNotConfirmable.Error())
		return Result{Route: RoutePlanning, Outcome: OutcomeRejected, Err: domain.ErrNotConfirmable}
	}

	o.announce(domain.ReplyPlanning)

	var itinerary *domain.Itinerary
	err := o.call(seq, domain.EndpointPlan, o.timeouts.Plan, func(ctx context.Context) error {
		var err error
		itinerary, err = o.backend.PlanTrip(ctx, draft)
		if err != nil {
			return err
		}
		return itinerary.Validate()
	})
	if err != nil {
		return o.fail(seq, RoutePlanning, domain.ReplyPlanFailed, err)
	}

	applied = o.update(o.ctx, seq, func(s *domain.State) bool {
		applyItinerary(s, itinerary)
		return true
	})
	if !applied {
		return o.stale(seq, RoutePlanning)
	}

	o.logger.Info("Itinerary generated", "seq", seq, "title", itinerary.TripTitle, "days", len(itinerary.Days))
	o.announce(domain.ReplyPlanReady)
	return Result{Route: RoutePlanning, Outcome: OutcomeApplied, Reply: domain.ReplyPlanReady}
}

func (o *Orchestrator) export(seq uint64, itinerary *domain.Itinerary) Result {
	var data []byte
	err := o.call(seq, domain.EndpointGeneratePDF, o.timeouts.Export, func(ctx context.Context) error {
		var err error
		data, err = o.backend.RenderPDF(ctx, itinerary)
		return err
	})
	if err != nil {
		o.logger.Error("Export failed", "seq", seq, "err", err)
		return Result{Route: RouteExport, Outcome: OutcomeFailed, Err: err}
	}

	doc := &ports.Document{
		Name:        domain.DefaultExportName,
		ContentType: "application/pdf",
		Data:        data,
	}
	var location string
	if o.sink != nil {
		location, err = o.sink.Deliver(o.ctx, *doc)
		if err != nil {
			o.logger.Error("Export delivery failed", "seq", seq, "err", err)
			return Result{Route: RouteExport, Outcome: OutcomeFailed, Err: fmt.Errorf("deliver %s: %w", doc.Name, err), Document: doc}
		}
	}

	o.logger.Info("Itinerary exported", "seq", seq, "bytes", len(data), "location", location)
	return Result{Route: RouteExport, Outcome: OutcomeApplied, Document: doc, Location: location}
}

// call issues one backend request under the endpoint timeout. No retries.
func (o *Orchestrator) call(seq uint64, endpoint string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(o.ctx, timeout)
	defer cancel()

	if o.hooks.OnCallStart != nil {
		o.hooks.OnCallStart(ctx, &domain.CallEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCallStart, Sequence: seq},
			Endpoint:  endpoint,
		})
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if o.hooks.OnCallEnd != nil {
		o.hooks.OnCallEnd(ctx, &domain.CallEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCallEnd, Sequence: seq},
			Endpoint:  endpoint,
			Duration:  elapsed,
			Err:       err,
		})
	}

	if err != nil {
		o.logger.Warn("Backend call failed", "endpoint", endpoint, "seq", seq, "duration", elapsed, "err", err)
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	o.logger.Debug("Backend call succeeded", "endpoint", endpoint, "seq", seq, "duration", elapsed)
	return nil
}

// fail appends the route's apology. When the orchestrator is shutting down or the
// operation was superseded, the failure is discarded instead.
func (o *Orchestrator) fail(seq uint64, route Route, apology string, cause error) Result {
	if errors.Is(o.ctx.Err(), context.Canceled) {
		o.update(o.ctx, 0, func(s *domain.State) bool {
			abandonCall(s, route)
			return true
		})
		return Result{Route: route, Outcome: OutcomeStale, Err: domain.ErrClosed}
	}

	applied := o.update(o.ctx, seq, func(s *domain.State) bool {
		failCall(s, route, apology)
		return true
	})
	if !applied {
		return o.stale(seq, route)
	}
	return Result{Route: route, Outcome: OutcomeFailed, Reply: apology, Err: cause}
}

// stale clears the busy flag of a superseded operation without touching anything else.
func (o *Orchestrator) stale(seq uint64, route Route) Result {
	o.update(o.ctx, 0, func(s *domain.State) bool {
		before := s.Busy
		abandonCall(s, route)
		return s.Busy != before
	})
	o.emitDiscard(o.ctx, seq, domain.DiscardStale, fmt.Sprintf("%s response discarded", route))
	o.logger.Info("Stale response discarded", "seq", seq, "route", route)
	return Result{Route: route, Outcome: OutcomeStale, Err: domain.ErrStale}
}
