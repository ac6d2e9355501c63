package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// SecureTokenBytes is the entropy of a form token before hex encoding.
const SecureTokenBytes = 32

func GenerateSecureToken() (string, error) {
	token := make([]byte, SecureTokenBytes)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}
