package tripvoice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tripvoice"
	"github.com/aretw0/tripvoice/internal/testutils"
	"github.com/aretw0/tripvoice/pkg/adapters/memory"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingVoice struct {
	mu     sync.Mutex
	spoken []string
}

func (r *recordingVoice) said() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spoken...)
}

func (r *recordingVoice) Voices(context.Context) ([]ports.Voice, error) {
	return []ports.Voice{{Name: "en-us", Lang: "en-US"}}, nil
}

func (r *recordingVoice) Speak(_ context.Context, u ports.LocalUtterance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, u.Text)
	return nil
}

func (r *recordingVoice) Cancel() error { return nil }

func TestAssistant_TypedTrip(t *testing.T) {
	backend := &testutils.KyotoBackend{}
	sink := memory.NewDocumentSink()
	a := tripvoice.New(backend, tripvoice.WithDocumentSink(sink), tripvoice.WithSpeechDisabled())
	t.Cleanup(func() { _ = a.Close() })
	ctx := context.Background()

	ticket, err := a.Send(ctx, "Three days in Kyoto please")
	require.NoError(t, err)
	res := testutils.Wait(t, ticket)
	assert.Equal(t, tripvoice.OutcomeApplied, res.Outcome)
	assert.Equal(t, domain.ReplyConstraintsComplete, res.Reply)

	ticket, err = a.ConfirmItinerary(ctx)
	require.NoError(t, err)
	assert.Equal(t, tripvoice.OutcomeApplied, testutils.Wait(t, ticket).Outcome)

	state := a.State()
	require.NotNil(t, state.Itinerary)
	assert.Nil(t, state.Constraints)
	assert.False(t, state.TTSEnabled)

	ticket, err = a.RequestExport(ctx)
	require.NoError(t, err)
	res = testutils.Wait(t, ticket)
	assert.Equal(t, "memory://"+domain.DefaultExportName, res.Location)
	assert.Equal(t, 1, sink.Count())

	require.NoError(t, a.StartNewTrip(ctx))
	assert.Nil(t, a.State().Itinerary)
}

func TestAssistant_VoiceUpload(t *testing.T) {
	backend := &testutils.KyotoBackend{}
	a := tripvoice.New(backend,
		tripvoice.WithTranscriber(testutils.StaticTranscriber{Text: "Kyoto for three days"}),
		tripvoice.WithSpeechDisabled(),
	)
	t.Cleanup(func() { _ = a.Close() })
	require.True(t, a.VoiceEnabled())

	transcript, ticket, err := a.SubmitAudio(context.Background(), ports.Audio{Data: []byte("webm")})
	require.NoError(t, err)
	assert.Equal(t, "Kyoto for three days", transcript)
	assert.Equal(t, tripvoice.OutcomeApplied, testutils.Wait(t, ticket).Outcome)

	state := a.State()
	require.Len(t, state.Turns, 2)
	assert.Equal(t, "Kyoto for three days", state.Turns[0].Content)
	assert.Equal(t, "Kyoto for three days", state.Transcript)
}

func TestAssistant_VoiceUploadFailure(t *testing.T) {
	backend := &testutils.KyotoBackend{}
	a := tripvoice.New(backend,
		tripvoice.WithTranscriber(testutils.StaticTranscriber{Err: errors.New("503")}),
	)
	t.Cleanup(func() { _ = a.Close() })

	transcript, ticket, err := a.SubmitAudio(context.Background(), ports.Audio{Data: []byte("webm")})
	assert.Error(t, err)
	assert.Equal(t, domain.ErrorTranscript, transcript)
	assert.Nil(t, ticket, "the error sentinel never reaches the conversation")
	assert.Empty(t, a.State().Turns)
	assert.Empty(t, backend.Called())
}

func TestAssistant_VoiceDisabled(t *testing.T) {
	a := tripvoice.New(&testutils.KyotoBackend{})
	t.Cleanup(func() { _ = a.Close() })

	assert.False(t, a.VoiceEnabled())
	assert.False(t, a.Recording())
	_, err := a.StartRecording(context.Background())
	assert.ErrorIs(t, err, tripvoice.ErrVoiceDisabled)
	_, _, err = a.StopRecording(context.Background())
	assert.ErrorIs(t, err, tripvoice.ErrVoiceDisabled)
}

func TestAssistant_SpeaksRepliesWithLocalVoice(t *testing.T) {
	voice := &recordingVoice{}
	a := tripvoice.New(&testutils.KyotoBackend{}, tripvoice.WithLocalVoice(voice))
	t.Cleanup(func() { _ = a.Close() })
	ctx := context.Background()

	ticket, err := a.Send(ctx, "somewhere warm")
	require.NoError(t, err)
	testutils.Wait(t, ticket)

	assert.Eventually(t, func() bool {
		return len(voice.said()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Where would you like to go?"}, voice.said())
}
