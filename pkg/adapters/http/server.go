// Package http exposes the assistant to browser and script front-ends.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/tripvoice"
	"github.com/aretw0/tripvoice/internal/logging"
	"github.com/aretw0/tripvoice/pkg/capture"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// maxAudioBytes caps uploaded recordings.
const maxAudioBytes = 25 << 20

// Assistant is the conversation surface served over HTTP. *tripvoice.Assistant satisfies it.
type Assistant interface {
	State() *domain.State
	Subscribe() (<-chan *domain.State, func())
	Send(ctx context.Context, text string) (*tripvoice.Ticket, error)
	ConfirmItinerary(ctx context.Context) (*tripvoice.Ticket, error)
	RequestExport(ctx context.Context) (*tripvoice.Ticket, error)
	StartNewTrip(ctx context.Context) error
	SetSpeechEnabled(ctx context.Context, enabled bool)
	StartRecording(ctx context.Context) (capture.Handle, error)
	StopRecording(ctx context.Context) (string, *tripvoice.Ticket, error)
	SubmitAudio(ctx context.Context, audio ports.Audio) (string, *tripvoice.Ticket, error)
}

// DocumentSource returns the most recent export. memory.DocumentSink satisfies it.
type DocumentSource interface {
	Latest() (ports.Document, bool)
}

// Server serves one Assistant.
type Server struct {
	Assistant Assistant
	Documents DocumentSource
	Metrics   http.Handler
	Logger    *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithDocuments serves the latest export at GET /exports/latest.
func WithDocuments(src DocumentSource) Option {
	return func(s *Server) {
		s.Documents = src
	}
}

// WithMetrics mounts a metrics handler (e.g. promhttp) at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates the HTTP handler for the assistant.
func NewHandler(a Assistant, opts ...Option) http.Handler {
	s := &Server{Assistant: a, Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	if contract, err := loadContract(context.Background()); err != nil {
		s.Logger.Error("Request validation disabled", "err", err)
	} else {
		r.Use(s.validateRequests(contract))
	}
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/state", s.GetState)
	r.Post("/messages", s.PostMessage)
	r.Post("/audio", s.PostAudio)
	r.Post("/recording/start", s.StartRecording)
	r.Post("/recording/stop", s.StopRecording)
	r.Post("/itinerary/confirm", s.ConfirmItinerary)
	r.Post("/itinerary/export", s.ExportItinerary)
	r.Get("/exports/latest", s.GetLatestExport)
	r.Post("/trips", s.StartNewTrip)
	r.Put("/speech", s.SetSpeech)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/ws", s.ServeWebSocket)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OperationResponse reports how an operation resolved.
type OperationResponse struct {
	Sequence   uint64        `json:"sequence"`
	Outcome    string        `json:"outcome,omitempty"`
	Reply      string        `json:"reply,omitempty"`
	Error      string        `json:"error,omitempty"`
	Location   string        `json:"location,omitempty"`
	Transcript string        `json:"transcript,omitempty"`
	State      *domain.State `json:"state,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type speechRequest struct {
	Enabled bool `json:"enabled"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "tripvoice-http",
		"version": strings.TrimSpace(tripvoice.Version),
	})
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Assistant.State())
}

// PostMessage handles POST /messages with a typed utterance.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("PostMessage: Invalid request body", "err", err)
		return
	}
	ticket, err := s.Assistant.Send(r.Context(), body.Text)
	s.respond(w, r, ticket, err, "")
}

// PostAudio handles POST /audio with a recording as the raw body.
func (s *Server) PostAudio(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes+1))
	if err != nil {
		http.Error(w, "Failed to read audio", http.StatusBadRequest)
		return
	}
	if len(data) > maxAudioBytes {
		http.Error(w, "Recording too large", http.StatusRequestEntityTooLarge)
		return
	}
	audio := ports.Audio{Data: data, MimeType: r.Header.Get("Content-Type")}
	transcript, ticket, err := s.Assistant.SubmitAudio(r.Context(), audio)
	s.respond(w, r, ticket, err, transcript)
}

// StartRecording handles POST /recording/start.
func (s *Server) StartRecording(w http.ResponseWriter, r *http.Request) {
	h, err := s.Assistant.StartRecording(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"capture_id": h.ID, "started_at": h.StartedAt})
}

// StopRecording handles POST /recording/stop.
func (s *Server) StopRecording(w http.ResponseWriter, r *http.Request) {
	transcript, ticket, err := s.Assistant.StopRecording(r.Context())
	s.respond(w, r, ticket, err, transcript)
}

// ConfirmItinerary handles POST /itinerary/confirm.
func (s *Server) ConfirmItinerary(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.Assistant.ConfirmItinerary(r.Context())
	s.respond(w, r, ticket, err, "")
}

// ExportItinerary handles POST /itinerary/export.
func (s *Server) ExportItinerary(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.Assistant.RequestExport(r.Context())
	s.respond(w, r, ticket, err, "")
}

// GetLatestExport handles GET /exports/latest.
func (s *Server) GetLatestExport(w http.ResponseWriter, r *http.Request) {
	if s.Documents == nil {
		http.Error(w, "Exports are not served", http.StatusNotFound)
		return
	}
	doc, ok := s.Documents.Latest()
	if !ok {
		http.Error(w, "No export yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	_, _ = w.Write(doc.Data)
}

// StartNewTrip handles POST /trips.
func (s *Server) StartNewTrip(w http.ResponseWriter, r *http.Request) {
	if err := s.Assistant.StartNewTrip(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Assistant.State())
}

// SetSpeech handles PUT /speech.
func (s *Server) SetSpeech(w http.ResponseWriter, r *http.Request) {
	var body speechRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.Assistant.SetSpeechEnabled(r.Context(), body.Enabled)
	writeJSON(w, http.StatusOK, s.Assistant.State())
}

// respond waits for the ticket unless ?wait=false, then reports its result.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, ticket *tripvoice.Ticket, err error, transcript string) {
	if err != nil && ticket == nil {
		if transcript != "" {
			// A failed upload still yields the sentinel transcript.
			writeJSON(w, http.StatusBadGateway, OperationResponse{Transcript: transcript, Error: err.Error()})
			return
		}
		s.writeError(w, err)
		return
	}
	if ticket == nil {
		// Nothing reached the conversation, e.g. a silent recording.
		writeJSON(w, http.StatusOK, OperationResponse{Transcript: transcript, State: s.Assistant.State()})
		return
	}

	if !waitRequested(r) {
		writeJSON(w, http.StatusAccepted, OperationResponse{Sequence: ticket.Sequence(), Transcript: transcript})
		return
	}

	res, err := ticket.Wait(r.Context())
	if err != nil {
		http.Error(w, "Request canceled", http.StatusServiceUnavailable)
		return
	}

	resp := OperationResponse{
		Sequence:   res.Sequence,
		Outcome:    string(res.Outcome),
		Reply:      res.Reply,
		Location:   res.Location,
		Transcript: transcript,
		State:      s.Assistant.State(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}

	status := http.StatusOK
	switch res.Outcome {
	case tripvoice.OutcomeRejected, tripvoice.OutcomeStale:
		status = http.StatusConflict
	case tripvoice.OutcomeFailed:
		if res.Route == tripvoice.RouteExport {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, resp)
}

// waitRequested reports whether the caller asked for the resolved result, the default.
func waitRequested(r *http.Request) bool {
	wait := true
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		return true
	}
	return wait
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrIgnoredInput),
		errors.Is(err, domain.ErrInputTooLarge),
		errors.Is(err, domain.ErrInvalidUTF8):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotConfirmable),
		errors.Is(err, domain.ErrNoItinerary),
		errors.Is(err, domain.ErrCaptureBusy),
		errors.Is(err, domain.ErrNoActiveCapture):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrMicrophoneDenied):
		status = http.StatusForbidden
	case errors.Is(err, tripvoice.ErrVoiceDisabled):
		status = http.StatusNotImplemented
	case errors.Is(err, domain.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("Request failed", "err", err)
	}
	writeJSON(w, status, OperationResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Response encode failed", "err", err)
	}
}
