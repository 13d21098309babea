// Package cryptox provides the at-rest encryption service injected into
// ledger persistence. It is a plain byte-stream transform: callers hand it
// serialized ledger bytes and get an opaque blob back, and vice versa.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrDecrypt is returned when a blob cannot be authenticated/decrypted with
// the configured key. Loaders match it with errors.Is to trigger the
// plaintext fallback path.
var ErrDecrypt = errors.New("cryptox: decrypt failed")

// Cipher encrypts and decrypts opaque byte streams. Implementations must be
// safe for concurrent use.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(blob []byte) ([]byte, error)
}

// AESGCM is a Cipher backed by AES-256-GCM. Each Encrypt call generates a
// fresh random nonce which is prepended to the ciphertext, so the blob is
// self-contained.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds an AESGCM cipher from a key. The key must be 16, 24 or
// 32 bytes (AES-128/192/256).
func NewAESGCM(key []byte) (*AESGCM, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

func (c *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *AESGCM) Decrypt(blob []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(blob) < ns {
		return nil, ErrDecrypt
	}
	plaintext, err := c.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// DeriveKey stretches a passphrase into a 32-byte AES key with Argon2id.
// The salt must be stable per deployment so the same passphrase always
// yields the same key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// WipeBytes overwrites the slice with zeros. Useful for passphrases and
// derived keys once they are no longer needed.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
