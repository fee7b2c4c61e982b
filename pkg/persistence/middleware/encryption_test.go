package middleware_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/aretw0/tripvoice/pkg/adapters/memory"
	"github.com/aretw0/tripvoice/pkg/persistence/middleware"
	"github.com/aretw0/tripvoice/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func mustMiddleware(t *testing.T, cfg middleware.EncryptionConfig) middleware.Middleware {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return mw
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewAudioCache()
	secure := mustMiddleware(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	ctx := context.Background()
	original := ports.Audio{Data: []byte("Day one: Fushimi Inari"), MimeType: "audio/mpeg"}

	if err := secure.Put(ctx, "reply", original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stored, ok, err := underlying.Get(ctx, "reply")
	if err != nil || !ok {
		t.Fatalf("Underlying get failed: ok=%v err=%v", ok, err)
	}
	if bytes.Contains(stored.Data, []byte("Fushimi")) {
		t.Fatal("Expected audio to be hidden in the underlying cache")
	}
	if stored.MimeType == "audio/mpeg" {
		t.Error("Expected the MIME type to be sealed too")
	}

	loaded, ok, err := secure.Get(ctx, "reply")
	if err != nil || !ok {
		t.Fatalf("Get via middleware failed: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(loaded.Data, original.Data) || loaded.MimeType != original.MimeType {
		t.Errorf("Expected %+v, got %+v", original, loaded)
	}
}

func TestEncryptionMiddleware_Miss(t *testing.T) {
	secure := mustMiddleware(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewAudioCache())

	_, ok, err := secure.Get(context.Background(), "nothing")
	if err != nil || ok {
		t.Fatalf("Expected a clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewAudioCache()
	ctx := context.Background()
	oldKey, newKey := generateKey(t), generateKey(t)

	old := mustMiddleware(t, middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	if err := old.Put(ctx, "reply", ports.Audio{Data: []byte("mp3")}); err != nil {
		t.Fatal(err)
	}

	rotated := mustMiddleware(t, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)
	audio, ok, err := rotated.Get(ctx, "reply")
	if err != nil || !ok {
		t.Fatalf("Expected fallback key to decrypt, got ok=%v err=%v", ok, err)
	}
	if string(audio.Data) != "mp3" {
		t.Errorf("Expected mp3, got %q", audio.Data)
	}

	stranger := mustMiddleware(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	if _, _, err := stranger.Get(ctx, "reply"); err == nil {
		t.Error("Expected decryption with an unknown key to fail")
	}
}

func TestEncryptionMiddleware_RejectsPlainEntries(t *testing.T) {
	underlying := memory.NewAudioCache()
	ctx := context.Background()
	if err := underlying.Put(ctx, "reply", ports.Audio{Data: []byte("mp3"), MimeType: "audio/mpeg"}); err != nil {
		t.Fatal(err)
	}

	secure := mustMiddleware(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, ok, err := secure.Get(ctx, "reply")
	if !errors.Is(err, middleware.ErrNotEncrypted) || ok {
		t.Fatalf("Expected ErrNotEncrypted, got ok=%v err=%v", ok, err)
	}
}

func TestNewEncryptionMiddleware_KeySize(t *testing.T) {
	if _, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")}); err == nil {
		t.Fatal("Expected short key to be rejected")
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.AudioCache) ports.AudioCache {
			return recorder{next: next, name: name, order: &order}
		}
	}

	cache := middleware.Chain(memory.NewAudioCache(), tag("outer"), tag("inner"))
	if err := cache.Put(context.Background(), "k", ports.Audio{}); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("Expected [outer inner], got %v", order)
	}
}

type recorder struct {
	next  ports.AudioCache
	name  string
	order *[]string
}

func (r recorder) Get(ctx context.Context, key string) (ports.Audio, bool, error) {
	return r.next.Get(ctx, key)
}

func (r recorder) Put(ctx context.Context, key string, audio ports.Audio) error {
	*r.order = append(*r.order, r.name)
	return r.next.Put(ctx, key, audio)
}
