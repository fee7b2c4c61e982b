package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/tripvoice"
	"github.com/aretw0/tripvoice/internal/testutils"
	"github.com/aretw0/tripvoice/pkg/adapters/memory"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	a := tripvoice.New(&testutils.KyotoBackend{},
		tripvoice.WithDocumentSink(memory.NewDocumentSink()),
		tripvoice.WithSpeechDisabled(),
	)
	t.Cleanup(func() { _ = a.Close() })
	return NewServer(a, nil)
}

func TestServer_ToolsAreListed(t *testing.T) {
	s := newTestServer(t)

	msg := s.mcpServer.HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
	))
	out, err := json.Marshal(msg)
	require.NoError(t, err)

	for _, name := range []string{"send_message", "confirm_itinerary", "export_itinerary", "start_new_trip", "set_speech", "get_conversation"} {
		assert.Contains(t, string(out), `"`+name+`"`)
	}
}

func TestServer_PlanTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	resp, err := s.handleSendMessage(ctx, req, map[string]any{"text": "Three days in Kyoto"})
	require.NoError(t, err)
	assert.Equal(t, "applied", resp.Outcome)
	assert.Equal(t, domain.ReplyConstraintsComplete, resp.Reply)

	resp, err = s.handleConfirm(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReplyPlanReady, resp.Reply)
	require.NotNil(t, resp.State.Itinerary)

	resp, err = s.handleExport(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory://"+domain.DefaultExportName, resp.Location)

	resp, err = s.handleNewTrip(ctx, req, nil)
	require.NoError(t, err)
	assert.Nil(t, resp.State.Itinerary)
}

func TestServer_Rejections(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleSendMessage(ctx, req, map[string]any{"text": "   "})
	assert.ErrorIs(t, err, domain.ErrIgnoredInput)

	resp, err := s.handleConfirm(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "rejected", resp.Outcome)
	assert.NotEmpty(t, resp.Error)

	_, err = s.handleExport(ctx, req, nil)
	assert.ErrorIs(t, err, domain.ErrNoItinerary)

	_, err = s.handleSetSpeech(ctx, req, map[string]any{"enabled": "yes"})
	assert.Error(t, err)

	resp, err = s.handleSetSpeech(ctx, req, map[string]any{"enabled": true})
	require.NoError(t, err)
	assert.True(t, resp.State.TTSEnabled)
}
