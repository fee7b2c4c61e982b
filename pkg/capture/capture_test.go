package capture_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/tripvoice/pkg/capture"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream yields its data once, then blocks until closed.
type fakeStream struct {
	data   *bytes.Reader
	closed chan struct{}
	once   sync.Once
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if n, _ := s.data.Read(p); n > 0 {
		return n, nil
	}
	<-s.closed
	return 0, io.EOF
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) MimeType() string { return "audio/wav" }

type fakeMic struct {
	data    []byte
	err     error
	opened  atomic.Int32
	streams []*fakeStream
	mu      sync.Mutex
}

func (m *fakeMic) Open(context.Context) (ports.AudioStream, error) {
	m.opened.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	s := &fakeStream{data: bytes.NewReader(m.data), closed: make(chan struct{})}
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

func (m *fakeMic) allClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.streams {
		select {
		case <-s.closed:
		default:
			return false
		}
	}
	return true
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
	got   ports.Audio
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio ports.Audio) (string, error) {
	f.calls++
	f.got = audio
	return f.text, f.err
}

func TestCapture_RoundTrip(t *testing.T) {
	mic := &fakeMic{data: []byte("RIFF....")}
	tr := &fakeTranscriber{text: " I want to visit Kyoto "}
	var delivered []string
	c := capture.New(mic, tr, capture.WithTranscriptHandler(func(_ context.Context, s string) {
		delivered = append(delivered, s)
	}))

	h, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, capture.PhaseRecording, c.Phase())

	text, err := c.Stop(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "I want to visit Kyoto", text)
	assert.Equal(t, []string{"I want to visit Kyoto"}, delivered)
	assert.Equal(t, []byte("RIFF...."), tr.got.Data)
	assert.Equal(t, "audio/wav", tr.got.MimeType)
	assert.Equal(t, capture.PhaseIdle, c.Phase())
	assert.True(t, mic.allClosed())
}

func TestCapture_SecondStartIsRejected(t *testing.T) {
	mic := &fakeMic{data: []byte("x")}
	c := capture.New(mic, &fakeTranscriber{text: "ok"})

	h, err := c.Start(context.Background())
	require.NoError(t, err)

	_, err = c.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrCaptureBusy)
	assert.Equal(t, int32(1), mic.opened.Load(), "only one microphone session may be open")

	_, err = c.Stop(context.Background(), h)
	require.NoError(t, err)

	// Idle again, so a new session is allowed.
	h2, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, h.ID, h2.ID)
	_, _ = c.Stop(context.Background(), h2)
}

func TestCapture_ConcurrentStarts(t *testing.T) {
	mic := &fakeMic{data: []byte("x")}
	c := capture.New(mic, &fakeTranscriber{text: "ok"})

	var wg sync.WaitGroup
	var ok atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Start(context.Background()); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), mic.opened.Load())
}

func TestCapture_PermissionDenied(t *testing.T) {
	mic := &fakeMic{err: domain.ErrMicrophoneDenied}
	tr := &fakeTranscriber{}
	c := capture.New(mic, tr)

	_, err := c.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrMicrophoneDenied)
	assert.Equal(t, capture.PhaseIdle, c.Phase())
	assert.Zero(t, tr.calls)
}

func TestCapture_EmptyRecordingIsSuppressed(t *testing.T) {
	mic := &fakeMic{}
	tr := &fakeTranscriber{text: "should not be used"}
	called := false
	c := capture.New(mic, tr, capture.WithTranscriptHandler(func(context.Context, string) { called = true }))

	h, err := c.Start(context.Background())
	require.NoError(t, err)
	text, err := c.Stop(context.Background(), h)

	require.NoError(t, err)
	assert.Empty(t, text)
	assert.False(t, called)
	assert.Zero(t, tr.calls, "nothing is uploaded")
	assert.True(t, mic.allClosed())
}

func TestCapture_UploadFailureYieldsSentinel(t *testing.T) {
	mic := &fakeMic{data: []byte("audio")}
	tr := &fakeTranscriber{err: errors.New("503")}
	var delivered []string
	c := capture.New(mic, tr, capture.WithTranscriptHandler(func(_ context.Context, s string) {
		delivered = append(delivered, s)
	}))

	h, err := c.Start(context.Background())
	require.NoError(t, err)
	text, err := c.Stop(context.Background(), h)

	assert.Error(t, err)
	assert.Equal(t, domain.ErrorTranscript, text)
	assert.Equal(t, []string{domain.ErrorTranscript}, delivered)
	assert.True(t, domain.IsPlaceholder(text), "the sentinel is never mistaken for content")
	assert.True(t, mic.allClosed(), "the microphone is released on failure")
	assert.Equal(t, capture.PhaseIdle, c.Phase())
}

func TestCapture_StopUnknownHandle(t *testing.T) {
	c := capture.New(&fakeMic{data: []byte("x")}, &fakeTranscriber{})

	_, err := c.Stop(context.Background(), capture.Handle{ID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNoActiveCapture)

	h, err := c.Start(context.Background())
	require.NoError(t, err)
	_, err = c.Stop(context.Background(), capture.Handle{ID: "other"})
	assert.ErrorIs(t, err, domain.ErrNoActiveCapture)
	_, err = c.Stop(context.Background(), h)
	assert.NoError(t, err)
}

func TestCapture_Toggle(t *testing.T) {
	c := capture.New(&fakeMic{data: []byte("x")}, &fakeTranscriber{text: "hello"})

	started, _, err := c.Toggle(context.Background())
	require.NoError(t, err)
	assert.True(t, started)

	started, text, err := c.Toggle(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, "hello", text)
}

func TestCapture_Upload(t *testing.T) {
	tr := &fakeTranscriber{text: "two days in Lisbon"}
	var delivered []string
	c := capture.New(nil, tr, capture.WithTranscriptHandler(func(_ context.Context, s string) {
		delivered = append(delivered, s)
	}))

	text, err := c.Upload(context.Background(), ports.Audio{Data: []byte("webm")})
	require.NoError(t, err)
	assert.Equal(t, "two days in Lisbon", text)
	assert.Equal(t, domain.DefaultRecordingMIME, tr.got.MimeType)
	assert.Equal(t, []string{"two days in Lisbon"}, delivered)
	assert.Equal(t, capture.PhaseIdle, c.Phase())

	t.Run("Empty", func(t *testing.T) {
		text, err := c.Upload(context.Background(), ports.Audio{})
		require.NoError(t, err)
		assert.Empty(t, text)
		assert.Equal(t, 1, tr.calls)
	})

	t.Run("No microphone", func(t *testing.T) {
		_, err := c.Start(context.Background())
		assert.ErrorIs(t, err, domain.ErrMicrophoneDenied)
		assert.Equal(t, capture.PhaseIdle, c.Phase())
	})
}

func TestCapture_UploadWhileRecording(t *testing.T) {
	c := capture.New(&fakeMic{data: []byte("x")}, &fakeTranscriber{text: "ok"})
	h, err := c.Start(context.Background())
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), ports.Audio{Data: []byte("webm")})
	assert.ErrorIs(t, err, domain.ErrCaptureBusy)

	_, err = c.Stop(context.Background(), h)
	assert.NoError(t, err)
}
