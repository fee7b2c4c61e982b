// Package badger keeps synthesized audio in an embedded on-disk store, so
// spoken replies survive a restart without a Redis server.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tripvoice/pkg/ports"
	backend "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

type entry struct {
	Data     []byte `msgpack:"d"`
	MimeType string `msgpack:"m"`
}

// AudioCache implements ports.AudioCache on Badger.
type AudioCache struct {
	db     *backend.DB
	prefix string
	ttl    time.Duration
}

type Option func(*AudioCache)

// WithTTL sets the expiration of cached audio. Zero keeps entries forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *AudioCache) {
		c.ttl = ttl
	}
}

// Open opens (or creates) a cache in dir. An empty dir keeps everything in memory.
func Open(dir string, opts ...Option) (*AudioCache, error) {
	options := backend.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		options = options.WithInMemory(true)
	}
	db, err := backend.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio cache: %w", err)
	}
	return NewFromDB(db, opts...), nil
}

// NewFromDB wraps an open database.
func NewFromDB(db *backend.DB, opts ...Option) *AudioCache {
	c := &AudioCache{
		db:     db,
		prefix: "tts:",
		ttl:    7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached audio. A missing or expired key is a miss.
func (c *AudioCache) Get(ctx context.Context, key string) (ports.Audio, bool, error) {
	var raw []byte
	err := c.db.View(func(txn *backend.Txn) error {
		item, err := txn.Get([]byte(c.prefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, backend.ErrKeyNotFound) {
		return ports.Audio{}, false, nil
	}
	if err != nil {
		return ports.Audio{}, false, fmt.Errorf("failed to read cached audio: %w", err)
	}

	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		return ports.Audio{}, false, fmt.Errorf("failed to decode cached audio: %w", err)
	}
	return ports.Audio{Data: e.Data, MimeType: e.MimeType}, true, nil
}

// Put stores the audio.
func (c *AudioCache) Put(ctx context.Context, key string, audio ports.Audio) error {
	raw, err := msgpack.Marshal(entry{Data: audio.Data, MimeType: audio.MimeType})
	if err != nil {
		return fmt.Errorf("failed to encode audio: %w", err)
	}

	err = c.db.Update(func(txn *backend.Txn) error {
		e := backend.NewEntry([]byte(c.prefix+key), raw)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("failed to store audio: %w", err)
	}
	return nil
}

// Close flushes and closes the database.
func (c *AudioCache) Close() error {
	return c.db.Close()
}
