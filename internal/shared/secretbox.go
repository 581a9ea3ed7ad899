package shared

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// SecretBox encrypts per-tenant gateway credentials at rest. The master
// key comes from configuration and is never stored alongside the data.
type SecretBox struct {
	key [32]byte
}

// NewSecretBox builds a SecretBox from a 64-char hex master key.
func NewSecretBox(hexKey string) (*SecretBox, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("master key must be hex encoded")
	}
	if len(raw) != 32 {
		return nil, errors.New("master key must be 32 bytes")
	}
	var box SecretBox
	copy(box.key[:], raw)
	return &box, nil
}

// Seal encrypts plaintext and returns a base64 string with the nonce prefixed.
func (b *SecretBox) Seal(plaintext string) (string, error) {
	if b == nil {
		return "", errors.New("secretbox not initialised")
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (b *SecretBox) Open(encoded string) (string, error) {
	if b == nil {
		return "", errors.New("secretbox not initialised")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(raw) < 24 {
		return "", errors.New("ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &b.key)
	if !ok {
		return "", errors.New("ciphertext verification failed")
	}
	return string(plain), nil
}
