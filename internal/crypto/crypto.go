// Package crypto provides the signing and decryption primitives used by the
// channels client: HMAC-SHA256 for inline subscription auth, and NaCl
// secret-box decryption for payloads on private-encrypted channels.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrInvalidDecryptionKey reports that decryption failed because of the key:
// it was missing, not valid base64, or authentication of the ciphertext
// failed. Secretbox cannot tell a wrong key from a tampered ciphertext or
// a corrupted nonce, so all three report the same error.
var ErrInvalidDecryptionKey = errors.New("invalid decryption key")

// ErrInvalidEncryptedData reports a malformed encrypted payload: not a JSON
// object with base64 "nonce" and "ciphertext" fields.
var ErrInvalidEncryptedData = errors.New("invalid encrypted data")

type encryptedData struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// HMACSHA256Hex signs message with secret and returns the lower-case hex
// digest.
func HMACSHA256Hex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Decrypt opens an encrypted channel payload. The payload is a JSON object
// carrying a base64 nonce and ciphertext; the key is base64 too. It returns
// the recovered plaintext, ErrInvalidEncryptedData for a malformed payload,
// or ErrInvalidDecryptionKey for a missing/undecodable key or a failed
// authentication.
func Decrypt(payload, decryptionKey string) (string, error) {
	if decryptionKey == "" {
		return "", ErrInvalidDecryptionKey
	}

	var enc encryptedData
	if err := json.Unmarshal([]byte(payload), &enc); err != nil {
		return "", ErrInvalidEncryptedData
	}
	if enc.Nonce == "" || enc.Ciphertext == "" {
		return "", ErrInvalidEncryptedData
	}

	ciphertext, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return "", ErrInvalidEncryptedData
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(enc.Nonce)
	if err != nil {
		return "", ErrInvalidEncryptedData
	}
	keyBytes, err := base64.StdEncoding.DecodeString(decryptionKey)
	if err != nil {
		return "", ErrInvalidDecryptionKey
	}

	// wrong-sized nonce or key behaves like a wrong key, not a malformed
	// payload
	if len(nonceBytes) != 24 || len(keyBytes) != 32 {
		return "", ErrInvalidDecryptionKey
	}

	var nonce [24]byte
	var key [32]byte
	copy(nonce[:], nonceBytes)
	copy(key[:], keyBytes)

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return "", ErrInvalidDecryptionKey
	}
	return string(plaintext), nil
}
