package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tripvoice/pkg/adapters/redis"
	"github.com/aretw0/tripvoice/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...redis.Option) (*miniredis.Miniredis, *redis.AudioCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redis.NewFromClient(client, opts...)
}

func TestAudioCache_RoundTrip(t *testing.T) {
	_, cache := setup(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	audio := ports.Audio{Data: []byte{0xff, 0xfb, 0x00, 0x01}, MimeType: "audio/mpeg"}
	require.NoError(t, cache.Put(ctx, "abc", audio))

	got, ok, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, audio, got)
}

func TestAudioCache_TTLAndPrefix(t *testing.T) {
	mr, cache := setup(t, redis.WithTTL(time.Minute), redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "abc", ports.Audio{Data: []byte("x"), MimeType: "audio/mpeg"}))
	assert.True(t, mr.Exists("test:abc"))
	assert.Equal(t, time.Minute, mr.TTL("test:abc"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "expired audio is a miss")
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := redis.New("not a url")
	assert.Error(t, err)
}

func TestAudioCache_CorruptEntry(t *testing.T) {
	mr, cache := setup(t)
	require.NoError(t, mr.Set("tripvoice:tts:bad", "\xc1"))

	_, ok, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}
