// Package middleware decorates audio caches. Synthesized replies read the
// itinerary aloud, so caches shared between hosts (Redis) or left on disk
// (Badger) can be wrapped to keep the audio unreadable at rest.
package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/tripvoice/pkg/ports"
)

// encryptedMime marks entries written by the encryption middleware. The real
// MIME type travels inside the ciphertext.
const encryptedMime = "application/x-tripvoice-encrypted"

// ErrNotEncrypted is returned when a cached entry was stored without encryption.
var ErrNotEncrypted = errors.New("cached audio is missing its encryption envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new entries.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are older keys tried when decryption with ActiveKey fails.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.AudioCache
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals cached audio with AES-GCM.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	return func(next ports.AudioCache) ports.AudioCache {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Put(ctx context.Context, key string, audio ports.Audio) error {
	plain := seal(audio)
	ciphertext, err := encrypt(plain, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt audio: %w", err)
	}
	return m.next.Put(ctx, key, ports.Audio{Data: ciphertext, MimeType: encryptedMime})
}

func (m *encryptionMiddleware) Get(ctx context.Context, key string) (ports.Audio, bool, error) {
	envelope, ok, err := m.next.Get(ctx, key)
	if err != nil || !ok {
		return ports.Audio{}, ok, err
	}
	if envelope.MimeType != encryptedMime {
		return ports.Audio{}, false, ErrNotEncrypted
	}

	plain, err := decryptWithRotation(envelope.Data, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return ports.Audio{}, false, fmt.Errorf("failed to decrypt audio: %w", err)
	}
	audio, err := unseal(plain)
	if err != nil {
		return ports.Audio{}, false, err
	}
	return audio, true, nil
}

// seal prefixes the data with its MIME type: one length byte, then the type.
func seal(audio ports.Audio) []byte {
	mime := audio.MimeType
	if len(mime) > 255 {
		mime = mime[:255]
	}
	out := make([]byte, 0, 1+len(mime)+len(audio.Data))
	out = append(out, byte(len(mime)))
	out = append(out, mime...)
	return append(out, audio.Data...)
}

func unseal(plain []byte) (ports.Audio, error) {
	if len(plain) == 0 || int(plain[0]) > len(plain)-1 {
		return ports.Audio{}, errors.New("decrypted audio is truncated")
	}
	n := int(plain[0])
	return ports.Audio{
		MimeType: string(plain[1 : 1+n]),
		Data:     plain[1+n:],
	}, nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
