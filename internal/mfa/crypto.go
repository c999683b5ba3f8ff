package mfa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// encryptionKeySize is the AES-256 key length.
const encryptionKeySize = 32

// sealSecret encrypts a TOTP seed with AES-256-GCM for storage. The
// random nonce is prepended to the ciphertext and the whole blob is
// base64 encoded.
func sealSecret(key []byte, secret string) (string, error) {
	if len(key) != encryptionKeySize {
		return "", ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// openSecret reverses sealSecret.
func openSecret(key []byte, sealed string) (string, error) {
	if len(key) != encryptionKeySize {
		return "", ErrInvalidKeySize
	}

	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode stored secret: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(blob) < gcm.NonceSize() {
		return "", fmt.Errorf("stored secret too short")
	}

	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]

	secret, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt stored secret: %w", err)
	}

	return string(secret), nil
}
