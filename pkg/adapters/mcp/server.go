// Package mcp exposes the assistant as Model Context Protocol tools, so an
// agent can plan a trip on the user's behalf.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/tripvoice"
	"github.com/aretw0/tripvoice/internal/logging"
	"github.com/aretw0/tripvoice/internal/presentation/markdown"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	conversationURI = "tripvoice://conversation"
	itineraryURI    = "tripvoice://itinerary"
)

// ToolResponse is the structured result of every tool.
type ToolResponse struct {
	Outcome  string        `json:"outcome,omitempty" jsonschema_description:"applied, failed, stale or rejected"`
	Reply    string        `json:"reply,omitempty" jsonschema_description:"Assistant reply appended for this call"`
	Error    string        `json:"error,omitempty" jsonschema_description:"Cause of a failed, stale or rejected call"`
	Location string        `json:"location,omitempty" jsonschema_description:"Where an exported document was delivered"`
	State    *domain.State `json:"state" jsonschema_description:"Conversation state after the call"`
}

// Assistant is the conversation surface exposed over MCP. *tripvoice.Assistant satisfies it.
type Assistant interface {
	State() *domain.State
	Send(ctx context.Context, text string) (*tripvoice.Ticket, error)
	ConfirmItinerary(ctx context.Context) (*tripvoice.Ticket, error)
	RequestExport(ctx context.Context) (*tripvoice.Ticket, error)
	StartNewTrip(ctx context.Context) error
	SetSpeechEnabled(ctx context.Context, enabled bool)
}

// Server wraps an Assistant and exposes it as an MCP Server.
type Server struct {
	assistant Assistant
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(a Assistant, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		assistant: a,
		logger:    logger,
		mcpServer: server.NewMCPServer("tripvoice-mcp", strings.TrimSpace(tripvoice.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
		return nil
	})

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message. Before an itinerary exists it gathers trip constraints; afterwards it asks about the itinerary."),
		mcp.WithString("text", mcp.Required(), mcp.Description("What the traveler said")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("confirm_itinerary",
		mcp.WithDescription("Generate the itinerary once the trip constraints are complete."),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleConfirm))

	s.mcpServer.AddTool(mcp.NewTool("export_itinerary",
		mcp.WithDescription("Render the itinerary as a PDF and deliver it for download."),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleExport))

	s.mcpServer.AddTool(mcp.NewTool("start_new_trip",
		mcp.WithDescription("Forget the current itinerary and draft and start planning a new trip. The conversation log is kept."),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleNewTrip))

	s.mcpServer.AddTool(mcp.NewTool("set_speech",
		mcp.WithDescription("Turn spoken replies on or off."),
		mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("Whether replies are spoken")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetSpeech))

	s.mcpServer.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Get the conversation rendered as markdown: constraints checklist, itinerary and turns."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(markdown.Conversation(s.assistant.State())), nil
	})
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ToolResponse, error) {
	text, _ := args["text"].(string)
	ticket, err := s.assistant.Send(ctx, text)
	if err != nil {
		s.logger.Warn("MCP send_message: input rejected", "err", err, "size", len(text))
		return ToolResponse{}, fmt.Errorf("message rejected: %w", err)
	}
	return s.await(ctx, ticket)
}

func (s *Server) handleConfirm(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ToolResponse, error) {
	ticket, err := s.assistant.ConfirmItinerary(ctx)
	if err != nil {
		return ToolResponse{}, fmt.Errorf("confirm failed: %w", err)
	}
	return s.await(ctx, ticket)
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ToolResponse, error) {
	ticket, err := s.assistant.RequestExport(ctx)
	if err != nil {
		return ToolResponse{}, fmt.Errorf("export failed: %w", err)
	}
	return s.await(ctx, ticket)
}

func (s *Server) handleNewTrip(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ToolResponse, error) {
	if err := s.assistant.StartNewTrip(ctx); err != nil {
		return ToolResponse{}, err
	}
	return ToolResponse{Outcome: string(tripvoice.OutcomeApplied), State: s.assistant.State()}, nil
}

func (s *Server) handleSetSpeech(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ToolResponse, error) {
	enabled, ok := args["enabled"].(bool)
	if !ok {
		return ToolResponse{}, errors.New("enabled must be a boolean")
	}
	s.assistant.SetSpeechEnabled(ctx, enabled)
	return ToolResponse{Outcome: string(tripvoice.OutcomeApplied), State: s.assistant.State()}, nil
}

func (s *Server) await(ctx context.Context, ticket *tripvoice.Ticket) (ToolResponse, error) {
	res, err := ticket.Wait(ctx)
	if err != nil {
		return ToolResponse{}, err
	}
	resp := ToolResponse{
		Outcome:  string(res.Outcome),
		Reply:    res.Reply,
		Location: res.Location,
		State:    s.assistant.State(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(conversationURI, "Conversation State",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.assistant.State())
		if err != nil {
			return nil, fmt.Errorf("failed to encode state: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: conversationURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource(itineraryURI, "Current Itinerary",
		mcp.WithMIMEType("text/markdown"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: itineraryURI, MIMEType: "text/markdown", Text: markdown.Itinerary(s.assistant.State().Itinerary)},
		}, nil
	})
}
