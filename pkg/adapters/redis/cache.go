package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tripvoice/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// entry is the msgpack envelope stored under each key.
type entry struct {
	Data     []byte `msgpack:"d"`
	MimeType string `msgpack:"m"`
}

// AudioCache implements ports.AudioCache using Redis.
type AudioCache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*AudioCache)

// WithTTL sets the expiration of cached audio.
func WithTTL(ttl time.Duration) Option {
	return func(c *AudioCache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *AudioCache) {
		c.prefix = prefix
	}
}

// New creates a Redis audio cache from a connection URL (redis://host:port/db).
func New(url string, opts ...Option) (*AudioCache, error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(options), opts...), nil
}

// NewFromClient creates a cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *AudioCache {
	c := &AudioCache{
		client: client,
		prefix: "tripvoice:tts:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AudioCache) key(key string) string {
	return c.prefix + key
}

// Get returns the cached audio. A missing key is a miss, not an error.
func (c *AudioCache) Get(ctx context.Context, key string) (ports.Audio, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return ports.Audio{}, false, nil
		}
		return ports.Audio{}, false, fmt.Errorf("failed to read audio from redis: %w", err)
	}

	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		return ports.Audio{}, false, fmt.Errorf("failed to decode cached audio: %w", err)
	}
	return ports.Audio{Data: e.Data, MimeType: e.MimeType}, true, nil
}

// Put stores the audio with the configured TTL.
func (c *AudioCache) Put(ctx context.Context, key string, audio ports.Audio) error {
	raw, err := msgpack.Marshal(entry{Data: audio.Data, MimeType: audio.MimeType})
	if err != nil {
		return fmt.Errorf("failed to encode audio: %w", err)
	}

	// A zero TTL means no expiration.
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save audio to redis: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *AudioCache) Close() error {
	return c.client.Close()
}
