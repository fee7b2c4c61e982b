package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/tripvoice/pkg/ports"
)

// AudioCache implements ports.AudioCache in memory.
// Safe for concurrent use.
type AudioCache struct {
	data map[string]ports.Audio
	mu   sync.RWMutex
}

// NewAudioCache creates an empty cache.
func NewAudioCache() *AudioCache {
	return &AudioCache{
		data: make(map[string]ports.Audio),
	}
}

// Get returns a copy of the cached audio.
func (c *AudioCache) Get(ctx context.Context, key string) (ports.Audio, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	audio, ok := c.data[key]
	if !ok {
		return ports.Audio{}, false, nil
	}
	return ports.Audio{Data: slices.Clone(audio.Data), MimeType: audio.MimeType}, true, nil
}

// Put stores a copy of the audio.
func (c *AudioCache) Put(ctx context.Context, key string, audio ports.Audio) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = ports.Audio{Data: slices.Clone(audio.Data), MimeType: audio.MimeType}
	return nil
}

// Len reports how many entries are cached.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
