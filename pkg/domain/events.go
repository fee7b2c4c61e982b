package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurn      EventType = "turn"
	EventCallStart EventType = "call_start"
	EventCallEnd   EventType = "call_end"
	EventDiscard   EventType = "discard"
	EventSpeech    EventType = "speech"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Sequence  uint64    `json:"sequence"`
}

// TurnEvent reports a turn appended to the log.
type TurnEvent struct {
	EventBase
	Turn  Turn `json:"turn"`
	Index int  `json:"index"`
}

// CallEvent reports a backend call.
type CallEvent struct {
	EventBase
	Endpoint string        `json:"endpoint"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// DiscardReason explains why input or a response never reached the log.
type DiscardReason string

const (
	DiscardPlaceholder DiscardReason = "placeholder"
	DiscardStale       DiscardReason = "stale"
	DiscardRejected    DiscardReason = "rejected"
)

// DiscardEvent reports an utterance or response that was dropped.
type DiscardEvent struct {
	EventBase
	Reason DiscardReason `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

// SpeechPath names the route a reply took to the speaker.
type SpeechPath string

const (
	SpeechRemote   SpeechPath = "remote"
	SpeechCached   SpeechPath = "cached"
	SpeechFallback SpeechPath = "fallback"
	SpeechSilent   SpeechPath = "silent"
)

// SpeechEvent reports how a reply was voiced.
type SpeechEvent struct {
	EventBase
	Path   SpeechPath `json:"path"`
	Reason string     `json:"reason,omitempty"`
	Voice  string     `json:"voice,omitempty"`
}

// LifecycleHooks defines callbacks for observability. Nil callbacks are skipped.
type LifecycleHooks struct {
	OnTurn      func(context.Context, *TurnEvent)
	OnCallStart func(context.Context, *CallEvent)
	OnCallEnd   func(context.Context, *CallEvent)
	OnDiscard   func(context.Context, *DiscardEvent)
	OnSpeech    func(context.Context, *SpeechEvent)
}

// ChainHooks returns hooks that invoke every given set in order.
func ChainHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTurn: func(ctx context.Context, e *TurnEvent) {
			for _, h := range all {
				if h.OnTurn != nil {
					h.OnTurn(ctx, e)
				}
			}
		},
		OnCallStart: func(ctx context.Context, e *CallEvent) {
			for _, h := range all {
				if h.OnCallStart != nil {
					h.OnCallStart(ctx, e)
				}
			}
		},
		OnCallEnd: func(ctx context.Context, e *CallEvent) {
			for _, h := range all {
				if h.OnCallEnd != nil {
					h.OnCallEnd(ctx, e)
				}
			}
		},
		OnDiscard: func(ctx context.Context, e *DiscardEvent) {
			for _, h := range all {
				if h.OnDiscard != nil {
					h.OnDiscard(ctx, e)
				}
			}
		},
		OnSpeech: func(ctx context.Context, e *SpeechEvent) {
			for _, h := range all {
				if h.OnSpeech != nil {
					h.OnSpeech(ctx, e)
				}
			}
		},
	}
}
