// Package util supplies the small helpers cmd/main.go's wiring implies but
// the reference repo ships no implementation file for — here, at-rest
// decryption of the wallet signing key (mirrors pkg/contractclient, whose
// interface the reference repo also declares through usage only).
package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Decrypt reverses the AES-256-GCM encryption used to store the wallet
// signing key at rest (spec §6 "wallet signing key"). key is hashed to a
// 32-byte AES key; encryptedHex is hex(nonce || ciphertext || tag).
func Decrypt(key []byte, encryptedHex string) (string, error) {
	data, err := hex.DecodeString(encryptedHex)
	if err != nil {
		return "", fmt.Errorf("util: decode encrypted key: %w", err)
	}

	sum := sha256.Sum256(key)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return "", fmt.Errorf("util: build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("util: build GCM: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("util: encrypted key too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("util: decrypt key: %w", err)
	}
	return string(plaintext), nil
}
