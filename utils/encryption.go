package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "sealed:v1:"

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Sealer encrypts individual sensitive values before they reach the database.
type Sealer struct {
	key []byte
}

// NewSealer derives a 256-bit key from secret. An empty secret yields nil, which
// callers treat as "store values in clear".
func NewSealer(secret string) *Sealer {
	if secret == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(secret))
	return &Sealer{key: sum[:]}
}

func (s *Sealer) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.URLEncoding.EncodeToString(out), nil
}

func (s *Sealer) Decrypt(ciphertext string) (string, error) {
	if !IsSealed(ciphertext) {
		return ciphertext, nil
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	decoded, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(ciphertext, sealedPrefix))
	if err != nil {
		return "", err
	}
	if len(decoded) < aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}

	nonce, sealed := decoded[:aead.NonceSize()], decoded[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}
