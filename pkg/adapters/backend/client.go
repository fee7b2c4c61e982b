// Package backend is the HTTP client of the trip-planning services.
//
// Every endpoint is a POST to {base}/api/{endpoint}. Non-2xx answers are
// returned as *StatusError; nothing is retried.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/aretw0/tripvoice/internal/logging"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
)

// DefaultBaseURL is used when no base address is configured.
const DefaultBaseURL = "http://localhost:8000"

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// StatusError reports a non-2xx answer.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client implements every backend port over HTTP.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *slog.Logger
	recordingName  string
	requestIDField string
}

var (
	_ ports.ConversationBackend = (*Client)(nil)
	_ ports.Transcriber         = (*Client)(nil)
	_ ports.Synthesizer         = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithRecordingName sets the file name announced for uploaded recordings.
func WithRecordingName(name string) Option {
	return func(cl *Client) {
		cl.recordingName = name
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		logger:         logging.NewNop(),
		recordingName:  domain.DefaultRecordingName,
		requestIDField: "X-Request-ID",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type textRequest struct {
	Text string `json:"text"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

type explainResponse struct {
	Answer string `json:"answer"`
}

// Transcribe uploads a recording as multipart field "file".
func (c *Client) Transcribe(ctx context.Context, audio ports.Audio) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	mimeType := audio.MimeType
	if mimeType == "" {
		mimeType = domain.DefaultRecordingMIME
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, c.recordingName))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	data, _, err := c.post(ctx, domain.EndpointTranscribe, w.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	var resp transcribeResponse
	if err := decodeJSON(data, &resp); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", domain.EndpointTranscribe, err)
	}
	return resp.Transcript, nil
}

// AnalyzeIntent returns the raw constraints object so explicit nulls survive.
func (c *Client) AnalyzeIntent(ctx context.Context, req ports.IntentRequest) (map[string]any, error) {
	if req.History == nil {
		req.History = []domain.Turn{}
	}
	data, err := c.postJSON(ctx, domain.EndpointAnalyze, req)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := decodeJSON(data, &fields); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", domain.EndpointAnalyze, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%s: empty response", domain.EndpointAnalyze)
	}
	return fields, nil
}

// Explain asks a question about the current itinerary.
func (c *Client) Explain(ctx context.Context, text string) (string, error) {
	data, err := c.postJSON(ctx, domain.EndpointExplain, textRequest{Text: text})
	if err != nil {
		return "", err
	}
	var resp explainResponse
	if err := decodeJSON(data, &resp); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", domain.EndpointExplain, err)
	}
	return resp.Answer, nil
}

// PlanTrip sends the full draft and returns the generated itinerary.
func (c *Client) PlanTrip(ctx context.Context, constraints *domain.Constraints) (*domain.Itinerary, error) {
	data, err := c.postJSON(ctx, domain.EndpointPlan, constraints)
	if err != nil {
		return nil, err
	}
	var it domain.Itinerary
	if err := decodeJSON(data, &it); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", domain.EndpointPlan, err)
	}
	return &it, nil
}

// Synthesize returns the audio bytes and their content type.
func (c *Client) Synthesize(ctx context.Context, text string) (ports.Audio, error) {
	body, err := json.Marshal(textRequest{Text: text})
	if err != nil {
		return ports.Audio{}, fmt.Errorf("marshal request: %w", err)
	}
	data, contentType, err := c.post(ctx, domain.EndpointSynthesize, "application/json", bytes.NewReader(body))
	if err != nil {
		return ports.Audio{}, err
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return ports.Audio{Data: data, MimeType: contentType}, nil
}

// RenderPDF returns the printable itinerary.
func (c *Client) RenderPDF(ctx context.Context, itinerary *domain.Itinerary) ([]byte, error) {
	return c.postJSON(ctx, domain.EndpointGeneratePDF, itinerary)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", endpoint, err)
	}
	data, _, err := c.post(ctx, endpoint, "application/json", bytes.NewReader(body))
	return data, err
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader) ([]byte, string, error) {
	url := c.baseURL + "/api/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: create request: %w", endpoint, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(c.requestIDField, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("Backend answered with error", "endpoint", endpoint, "status", resp.StatusCode, "request_id", requestID)
		return nil, "", &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: read response: %w", endpoint, err)
	}
	c.logger.Debug("Backend answered", "endpoint", endpoint, "bytes", len(data), "request_id", requestID)
	return data, resp.Header.Get("Content-Type"), nil
}

// decodeJSON unmarshals data into v, repairing malformed JSON produced by the
// language model behind the services before giving up.
func decodeJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}
