package vault

import (
	"crypto/rand"
	"io"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// Zero securely wipes a byte slice from memory.
func Zero(b []byte) {
	zero(b)
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, errors.Wrap(err, "read random bytes")
	}
	return b, nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under a fresh random nonce.
// The returned blob is nonce || ciphertext || tag. Its length leaks the
// plaintext length; no padding is applied.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "entry key: %v", err)
	}
	nonce, err := randBytes(NonceLen)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, NonceLen, NonceLen+len(plaintext)+aead.Overhead())
	copy(blob, nonce)
	return aead.Seal(blob, nonce, plaintext, aad), nil
}

// Open reverses Seal. A truncated, tampered or misbound blob fails with
// ErrDecryptionFailed.
func Open(key, blob, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "entry key: %v", err)
	}
	if len(blob) < NonceLen+aead.Overhead() {
		return nil, errors.Wrapf(ErrDecryptionFailed, "blob too short (%d bytes)", len(blob))
	}
	pt, err := aead.Open(nil, blob[:NonceLen], blob[NonceLen:], aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return pt, nil
}
