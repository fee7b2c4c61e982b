package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/oapi-codegen/runtime"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 20 * time.Second
	wsReadLimit    = 1 << 16
)

// SubscribeEvents handles GET /events (SSE). Each event carries a full state
// snapshot. The optional ?watch=turns,busy,constraints,itinerary,notice filter
// skips snapshots where none of the listed parts changed.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var watch []string
	if err := runtime.BindQueryParameter("form", false, false, "watch", r.URL.Query(), &watch); err != nil {
		http.Error(w, "Invalid watch filter", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := s.Assistant.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	last := s.Assistant.State()
	if err := writeEvent(w, last); err != nil {
		return
	}
	flusher.Flush()
	s.Logger.Info("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE client disconnected")
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if len(watch) > 0 && !changed(last, state, watch) {
				last = state
				continue
			}
			last = state
			if err := writeEvent(w, state); err != nil {
				s.Logger.Debug("SSE write failed", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}

// changed reports whether any watched part differs between two snapshots.
func changed(prev, next *domain.State, watch []string) bool {
	for _, field := range watch {
		switch strings.TrimSpace(field) {
		case "turns":
			if len(prev.Turns) != len(next.Turns) {
				return true
			}
		case "busy":
			if prev.Busy != next.Busy {
				return true
			}
		case "constraints":
			if !jsonEqual(prev.Constraints, next.Constraints) {
				return true
			}
		case "itinerary":
			if prev.Itinerary != next.Itinerary {
				return true
			}
		case "notice":
			if prev.Notice != next.Notice {
				return true
			}
		case "speech":
			if prev.TTSEnabled != next.TTSEnabled {
				return true
			}
		}
	}
	return false
}

func jsonEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

// ClientMessage is a frame sent by a websocket client.
type ClientMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// ServerMessage is a frame sent to a websocket client.
type ServerMessage struct {
	Type  string        `json:"type"`
	State *domain.State `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

// ServeWebSocket handles GET /ws. The server pushes {"type":"state"} frames
// after every change; clients send {"type":"message","text":...},
// {"type":"confirm"}, {"type":"export"}, {"type":"new_trip"} or
// {"type":"speech","enabled":...}. Operations are fire-and-forget; their
// effects arrive as state frames.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	updates, cancel := s.Assistant.Subscribe()
	defer cancel()

	out := make(chan ServerMessage, 8)
	done := make(chan struct{})
	go s.readFrames(r.Context(), conn, out, done)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	write := func(msg ServerMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}
	if err := write(ServerMessage{Type: "state", State: s.Assistant.State()}); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteTimeout))
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := write(ServerMessage{Type: "state", State: state}); err != nil {
				s.Logger.Debug("Websocket write failed", "err", err)
				return
			}
		case msg := <-out:
			if err := write(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// readFrames applies client frames until the connection closes. Errors are
// reported back on out; only the writer goroutine touches the connection for writes.
func (s *Server) readFrames(ctx context.Context, conn *websocket.Conn, out chan<- ServerMessage, done chan<- struct{}) {
	defer close(done)
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Logger.Debug("Websocket read ended", "err", err)
			}
			return
		}

		var opErr error
		switch msg.Type {
		case "message":
			_, opErr = s.Assistant.Send(ctx, msg.Text)
		case "confirm":
			_, opErr = s.Assistant.ConfirmItinerary(ctx)
		case "export":
			_, opErr = s.Assistant.RequestExport(ctx)
		case "new_trip":
			opErr = s.Assistant.StartNewTrip(ctx)
		case "speech":
			if msg.Enabled == nil {
				opErr = fmt.Errorf("speech frame requires enabled")
				break
			}
			s.Assistant.SetSpeechEnabled(ctx, *msg.Enabled)
		default:
			opErr = fmt.Errorf("unknown frame type %q", msg.Type)
		}
		if opErr != nil {
			select {
			case out <- ServerMessage{Type: "error", Error: opErr.Error()}:
			default:
			}
		}
	}
}
