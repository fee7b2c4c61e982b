// Package testutils holds fakes shared by the package tests.
package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tripvoice/internal/orchestrator"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/stretchr/testify/require"
)

// KyotoBackend is a scripted conversation backend. Any utterance mentioning
// Kyoto completes the draft; planning returns KyotoItinerary. Set Fail to make
// every call return an error.
type KyotoBackend struct {
	mu    sync.Mutex
	Fail  error
	Calls []string
}

var _ ports.ConversationBackend = (*KyotoBackend)(nil)

func (b *KyotoBackend) record(endpoint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, endpoint)
	return b.Fail
}

// Called returns the endpoints hit so far, in order.
func (b *KyotoBackend) Called() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.Calls...)
}

func (b *KyotoBackend) AnalyzeIntent(_ context.Context, req ports.IntentRequest) (map[string]any, error) {
	if err := b.record(domain.EndpointAnalyze); err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToLower(req.Text), "kyoto") {
		return map[string]any{
			"destination_city": "Kyoto",
			"duration_days":    3,
			"interests":        []any{"temples", "food"},
			"is_complete":      true,
		}, nil
	}
	return map[string]any{
		"is_complete":            false,
		"clarification_question": "Where would you like to go?",
	}, nil
}

func (b *KyotoBackend) Explain(_ context.Context, text string) (string, error) {
	if err := b.record(domain.EndpointExplain); err != nil {
		return "", err
	}
	return "Fushimi Inari is best early in the morning.", nil
}

func (b *KyotoBackend) PlanTrip(_ context.Context, c *domain.Constraints) (*domain.Itinerary, error) {
	if err := b.record(domain.EndpointPlan); err != nil {
		return nil, err
	}
	if c == nil || !c.IsComplete {
		return nil, errors.New("incomplete constraints")
	}
	return KyotoItinerary(), nil
}

func (b *KyotoBackend) RenderPDF(_ context.Context, it *domain.Itinerary) ([]byte, error) {
	if err := b.record(domain.EndpointGeneratePDF); err != nil {
		return nil, err
	}
	return []byte("%PDF-1.4 " + it.TripTitle), nil
}

// KyotoItinerary is the plan returned by KyotoBackend.
func KyotoItinerary() *domain.Itinerary {
	return &domain.Itinerary{
		TripTitle: "3 Days in Kyoto",
		Days: []domain.Day{
			{DayNumber: 1, Blocks: []domain.Block{
				{TimeBlock: "Morning", POI: domain.POI{Name: "Fushimi Inari", Category: "temple", AverageDurationMinutes: 120}},
				{TimeBlock: "Afternoon", POI: domain.POI{Name: "Nishiki Market", Category: "food"}, TravelTimeFromPrevious: "20 min"},
			}},
			{DayNumber: 2, Blocks: []domain.Block{{TimeBlock: "Morning", POI: domain.POI{Name: "Kinkaku-ji"}}}},
			{DayNumber: 3},
		},
		TotalCostEstimate: "$450",
	}
}

// StaticTranscriber returns Text for every recording.
type StaticTranscriber struct {
	Text string
	Err  error
}

func (s StaticTranscriber) Transcribe(context.Context, ports.Audio) (string, error) {
	return s.Text, s.Err
}

// Wait resolves a ticket or fails the test.
func Wait(t *testing.T, ticket *orchestrator.Ticket) orchestrator.Result {
	t.Helper()
	require.NotNil(t, ticket)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := ticket.Wait(ctx)
	require.NoError(t, err, "ticket did not resolve")
	return res
}
