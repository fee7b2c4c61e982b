package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/tripvoice/pkg/adapters/backend"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return backend.New(srv.URL + "/")
}

func TestClient_AnalyzeIntent(t *testing.T) {
	var got map[string]any
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/analyze-intent", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"destination_city":"Kyoto","start_date":null,"is_complete":false}`))
	})

	fields, err := client.AnalyzeIntent(context.Background(), ports.IntentRequest{Text: "Kyoto"})
	require.NoError(t, err)

	assert.Equal(t, "Kyoto", got["text"])
	assert.Contains(t, got, "existing_constraints", "a missing draft is sent as null")
	assert.Nil(t, got["existing_constraints"])
	assert.Equal(t, []any{}, got["history"])

	assert.Equal(t, "Kyoto", fields["destination_city"])
	v, present := fields["start_date"]
	assert.True(t, present, "explicit nulls are preserved")
	assert.Nil(t, v)
}

func TestClient_AnalyzeIntentRepairsJSON(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"destination_city": "Kyoto", "interests": ["food", "temples",],}`))
	})

	fields, err := client.AnalyzeIntent(context.Background(), ports.IntentRequest{Text: "Kyoto"})
	require.NoError(t, err)
	assert.Equal(t, "Kyoto", fields["destination_city"])
	assert.Equal(t, []any{"food", "temples"}, fields["interests"])
}

func TestClient_Explain(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/explain", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, map[string]string{"text": "why?"}, req)
		_, _ = w.Write([]byte(`{"answer":"Because."}`))
	})

	answer, err := client.Explain(context.Background(), "why?")
	require.NoError(t, err)
	assert.Equal(t, "Because.", answer)
}

func TestClient_PlanTrip(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/plan-trip", r.URL.Path)
		var c domain.Constraints
		require.NoError(t, json.NewDecoder(r.Body).Decode(&c))
		assert.Equal(t, "Kyoto", *c.DestinationCity)
		assert.True(t, c.IsComplete)

		_, _ = w.Write([]byte(`{
			"trip_title": "Kyoto",
			"days": [{"day_number": 1, "blocks": [{"time_block": "Morning", "poi": {"name": "Kinkaku-ji", "average_duration_minutes": 90, "rating": 4.7}}]}],
			"total_cost_estimate": "$400"
		}`))
	})

	it, err := client.PlanTrip(context.Background(), &domain.Constraints{
		DestinationCity: domain.Ptr("Kyoto"),
		IsComplete:      true,
	})
	require.NoError(t, err)
	require.Len(t, it.Days, 1)
	assert.Equal(t, "Kinkaku-ji", it.Days[0].Blocks[0].POI.Name)
	assert.Equal(t, 90, it.Days[0].Blocks[0].POI.AverageDurationMinutes)
	assert.InDelta(t, 4.7, *it.Days[0].Blocks[0].POI.Rating, 0.001)
	assert.Equal(t, "$400", it.TotalCostEstimate)
}

func TestClient_Transcribe(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/transcribe", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "recording.webm", header.Filename)
		assert.Equal(t, "audio/webm", header.Header.Get("Content-Type"))
		assert.Equal(t, "opus", string(data))
		_, _ = w.Write([]byte(`{"transcript":"three days in Kyoto"}`))
	})

	text, err := client.Transcribe(context.Background(), ports.Audio{Data: []byte("opus")})
	require.NoError(t, err)
	assert.Equal(t, "three days in Kyoto", text)
}

func TestClient_SynthesizeAndRender(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tts":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3"))
		case "/api/generate-pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		default:
			http.NotFound(w, r)
		}
	})

	audio, err := client.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, ports.Audio{Data: []byte("ID3"), MimeType: "audio/mpeg"}, audio)

	pdf, err := client.RenderPDF(context.Background(), &domain.Itinerary{TripTitle: "x"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
}

func TestClient_StatusError(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)

	var statusErr *backend.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, domain.EndpointSynthesize, statusErr.Endpoint)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "quota exceeded", statusErr.Body)
}

func TestClient_RespectsContext(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Explain(ctx, "slow?")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
