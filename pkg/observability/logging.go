package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tripvoice/pkg/domain"
)

// LogHooks logs every lifecycle event at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurn: func(ctx context.Context, e *domain.TurnEvent) {
			logger.DebugContext(ctx, "turn appended", "seq", e.Sequence, "role", e.Turn.Role, "index", e.Index)
		},
		OnCallStart: func(ctx context.Context, e *domain.CallEvent) {
			logger.DebugContext(ctx, "backend call", "seq", e.Sequence, "endpoint", e.Endpoint)
		},
		OnCallEnd: func(ctx context.Context, e *domain.CallEvent) {
			if e.Err != nil {
				logger.DebugContext(ctx, "backend call failed", "seq", e.Sequence, "endpoint", e.Endpoint, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "backend call done", "seq", e.Sequence, "endpoint", e.Endpoint, "duration", e.Duration)
		},
		OnDiscard: func(ctx context.Context, e *domain.DiscardEvent) {
			logger.DebugContext(ctx, "discarded", "seq", e.Sequence, "reason", e.Reason, "detail", e.Detail)
		},
		OnSpeech: func(ctx context.Context, e *domain.SpeechEvent) {
			logger.DebugContext(ctx, "speech", "path", e.Path, "voice", e.Voice, "reason", e.Reason)
		},
	}
}
