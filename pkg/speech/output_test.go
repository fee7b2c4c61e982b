package speech_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tripvoice/pkg/adapters/memory"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/aretw0/tripvoice/pkg/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (ports.Audio, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(ports.Audio), args.Error(1)
}

type MockPlayer struct {
	mock.Mock
}

func (m *MockPlayer) Play(ctx context.Context, audio ports.Audio) error {
	args := m.Called(ctx, audio)
	return args.Error(0)
}

type MockLocalVoice struct {
	mock.Mock
	calls []string
}

func (m *MockLocalVoice) Voices(ctx context.Context) ([]ports.Voice, error) {
	m.calls = append(m.calls, "voices")
	args := m.Called(ctx)
	return args.Get(0).([]ports.Voice), args.Error(1)
}

func (m *MockLocalVoice) Speak(ctx context.Context, u ports.LocalUtterance) error {
	m.calls = append(m.calls, "speak")
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockLocalVoice) Cancel() error {
	m.calls = append(m.calls, "cancel")
	args := m.Called()
	return args.Error(0)
}

var testVoices = []ports.Voice{
	{Name: "Microsoft David", Lang: "en-US"},
	{Name: "Google UK English Female", Lang: "en-GB"},
}

func speechPaths(events *[]domain.SpeechPath) speech.Option {
	return speech.WithLifecycleHooks(domain.LifecycleHooks{
		OnSpeech: func(_ context.Context, e *domain.SpeechEvent) {
			*events = append(*events, e.Path)
		},
	})
}

func TestSpeak_RemotePath(t *testing.T) {
	audio := ports.Audio{Data: []byte("mp3"), MimeType: "audio/mpeg"}
	synth := new(MockSynthesizer)
	synth.On("Synthesize", mock.Anything, "Hello").Return(audio, nil).Once()
	player := new(MockPlayer)
	player.On("Play", mock.Anything, audio).Return(nil).Twice()
	local := new(MockLocalVoice)

	var paths []domain.SpeechPath
	out := speech.New(synth, player,
		speech.WithLocalVoice(local),
		speech.WithCache(memory.NewAudioCache()),
		speechPaths(&paths),
	)

	out.Speak(context.Background(), "Hello")
	out.Speak(context.Background(), "Hello")

	synth.AssertExpectations(t)
	player.AssertExpectations(t)
	local.AssertNotCalled(t, "Speak", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.SpeechPath{domain.SpeechRemote, domain.SpeechCached}, paths)
}

func TestSpeak_FallbackStripsMarkdownAndCancelsFirst(t *testing.T) {
	synth := new(MockSynthesizer)
	synth.On("Synthesize", mock.Anything, "**Hello** #world").Return(ports.Audio{}, errors.New("quota exceeded"))
	player := new(MockPlayer)

	local := new(MockLocalVoice)
	local.On("Cancel").Return(nil)
	local.On("Voices", mock.Anything).Return(testVoices, nil)
	local.On("Speak", mock.Anything, ports.LocalUtterance{
		Text:  "Hello world",
		Voice: testVoices[1],
		Rate:  1.1,
		Pitch: 1.0,
	}).Return(nil)

	var paths []domain.SpeechPath
	out := speech.New(synth, player, speech.WithLocalVoice(local), speechPaths(&paths))

	assert.NotPanics(t, func() {
		out.Speak(context.Background(), "**Hello** #world")
	})

	local.AssertExpectations(t)
	player.AssertNotCalled(t, "Play", mock.Anything, mock.Anything)
	assert.Equal(t, []string{"cancel", "voices", "speak"}, local.calls)
	assert.Equal(t, []domain.SpeechPath{domain.SpeechFallback}, paths)
}

func TestSpeak_PlaybackRejectionFallsBack(t *testing.T) {
	audio := ports.Audio{Data: []byte("mp3")}
	synth := new(MockSynthesizer)
	synth.On("Synthesize", mock.Anything, "Hi").Return(audio, nil)
	player := new(MockPlayer)
	player.On("Play", mock.Anything, audio).Return(errors.New("device busy"))

	local := new(MockLocalVoice)
	local.On("Cancel").Return(nil)
	local.On("Voices", mock.Anything).Return(testVoices, nil)
	local.On("Speak", mock.Anything, mock.Anything).Return(nil)

	out := speech.New(synth, player, speech.WithLocalVoice(local))
	out.Speak(context.Background(), "Hi")

	local.AssertCalled(t, "Speak", mock.Anything, mock.Anything)
}

func TestSpeak_NoVoicesIsSilent(t *testing.T) {
	local := new(MockLocalVoice)
	local.On("Cancel").Return(nil)
	local.On("Voices", mock.Anything).Return([]ports.Voice{}, nil)

	var paths []domain.SpeechPath
	out := speech.New(nil, nil, speech.WithLocalVoice(local), speechPaths(&paths))

	assert.NotPanics(t, func() {
		out.Speak(context.Background(), "Hello")
	})
	local.AssertNotCalled(t, "Speak", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.SpeechPath{domain.SpeechSilent}, paths)
}

func TestSpeak_DisabledIsNoop(t *testing.T) {
	synth := new(MockSynthesizer)
	player := new(MockPlayer)
	local := new(MockLocalVoice)

	out := speech.New(synth, player, speech.WithLocalVoice(local))
	out.SetEnabled(false)
	require.False(t, out.Enabled())

	out.Speak(context.Background(), "Hello")

	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)
	assert.Empty(t, local.calls)
}

func TestSpeak_RecoversFromPanics(t *testing.T) {
	local := new(MockLocalVoice)
	local.On("Cancel").Return(nil)
	local.On("Voices", mock.Anything).Run(func(mock.Arguments) {
		panic("driver crashed")
	})

	out := speech.New(nil, nil, speech.WithLocalVoice(local))
	assert.NotPanics(t, func() {
		out.Speak(context.Background(), "Hello")
	})
}

func TestCacheKey_ScopedBySynthesizer(t *testing.T) {
	key := speech.CacheKey("http://localhost:8000", "Hello")
	assert.Equal(t, key, speech.CacheKey("http://localhost:8000", "Hello"))
	assert.NotEqual(t, key, speech.CacheKey("http://localhost:8000", "Hello!"))
	assert.NotEqual(t, key, speech.CacheKey("https://voice.example.com", "Hello"))
	assert.NotEqual(t, speech.CacheKey("a", "bc"), speech.CacheKey("ab", "c"))
}

func TestSpeak_CacheNotSharedAcrossScopes(t *testing.T) {
	audio := ports.Audio{Data: []byte("mp3"), MimeType: "audio/mpeg"}
	synth := new(MockSynthesizer)
	synth.On("Synthesize", mock.Anything, "Hello").Return(audio, nil).Twice()
	player := new(MockPlayer)
	player.On("Play", mock.Anything, audio).Return(nil).Twice()
	cache := memory.NewAudioCache()

	var paths []domain.SpeechPath
	first := speech.New(synth, player, speech.WithCache(cache), speech.WithCacheScope("http://a"), speechPaths(&paths))
	second := speech.New(synth, player, speech.WithCache(cache), speech.WithCacheScope("http://b"), speechPaths(&paths))

	first.Speak(context.Background(), "Hello")
	second.Speak(context.Background(), "Hello")

	synth.AssertExpectations(t)
	assert.Equal(t, []domain.SpeechPath{domain.SpeechRemote, domain.SpeechRemote}, paths)
}
