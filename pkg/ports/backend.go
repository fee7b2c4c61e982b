package ports

import (
	"context"

	"github.com/aretw0/tripvoice/pkg/domain"
)

// IntentRequest is the payload of the intent extraction service.
type IntentRequest struct {
	Text                string              `json:"text"`
	ExistingConstraints *domain.Constraints `json:"existing_constraints"`
	History             []domain.Turn       `json:"history"`
}

// IntentAnalyzer extracts trip constraints from an utterance.
// It returns the raw response object so explicit nulls survive decoding.
type IntentAnalyzer interface {
	AnalyzeIntent(ctx context.Context, req IntentRequest) (map[string]any, error)
}

// Explainer answers questions about an existing itinerary.
type Explainer interface {
	Explain(ctx context.Context, text string) (string, error)
}

// TripPlanner turns a complete draft into an itinerary.
type TripPlanner interface {
	PlanTrip(ctx context.Context, constraints *domain.Constraints) (*domain.Itinerary, error)
}

// PDFRenderer renders an itinerary as a printable document.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, itinerary *domain.Itinerary) ([]byte, error)
}

// ConversationBackend groups the services the orchestrator drives.
type ConversationBackend interface {
	IntentAnalyzer
	Explainer
	TripPlanner
	PDFRenderer
}

// Transcriber converts a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// Synthesizer converts text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}
