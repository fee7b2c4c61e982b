package ports

import (
	"context"
	"io"
)

// Audio is an encoded audio payload.
type Audio struct {
	Data     []byte
	MimeType string
}

// AudioStream is an open microphone. Close releases the device.
type AudioStream interface {
	io.Reader
	Close() error
	MimeType() string
}

// Microphone acquires the capture device.
// Open returns domain.ErrMicrophoneDenied (possibly wrapped) when access is refused.
type Microphone interface {
	Open(ctx context.Context) (AudioStream, error)
}

// AudioPlayer plays synthesized audio. Play blocks until playback ends or fails.
type AudioPlayer interface {
	Play(ctx context.Context, audio Audio) error
}

// Voice is an on-device synthesis voice.
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Gender  string `json:"gender,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// LocalUtterance is a request for on-device synthesis. A zero Voice selects the platform default.
type LocalUtterance struct {
	Text  string
	Voice Voice
	Rate  float64
	Pitch float64
}

// LocalVoice is the on-device synthesis engine.
type LocalVoice interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, u LocalUtterance) error
	// Cancel stops whatever is being spoken. It is safe to call when idle.
	Cancel() error
}

// AudioCache stores synthesized replies by key.
type AudioCache interface {
	Get(ctx context.Context, key string) (Audio, bool, error)
	Put(ctx context.Context, key string, audio Audio) error
}
