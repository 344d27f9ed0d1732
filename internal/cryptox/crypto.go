// Package cryptox implements the client-side cipher for burnnote notes.
//
// All encryption happens on the client: the server only ever sees ciphertext
// and nonces. A fresh random 256-bit AES key is generated per note and
// travels out-of-band in the URL fragment of the share link; it is never
// transmitted to the server.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvoloshins/burnnote/internal/common"
)

// NonceSize is the AES-GCM nonce length in bytes.
const NonceSize = 12

// KeySize is the note key length in bytes (AES-256).
const KeySize = 32

// GenerateKey returns a fresh random 256-bit note key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// ExportKey serializes a note key for embedding in a URL fragment.
func ExportKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// ImportKey parses a key previously produced by ExportKey.
func ImportKey(s string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key decode error: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("unexpected key length: %d", len(key))
	}
	return key, nil
}

// HashPassword computes the client-side password hash sent to the server in
// place of the plaintext password. The server compares hashes only and never
// learns the password itself.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Encrypt seals plaintext with AES-256-GCM under the given key.
//
// A new random nonce is generated for every call, including repeated
// encryptions of identical plaintext. The ciphertext and nonce are returned
// separately; both must be presented to Decrypt.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce = common.GenerateRandByteArray(aesgcm.NonceSize())
	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)

	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt. Authentication failure
// (wrong key, wrong nonce, or tampered ciphertext) returns an error.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}

	return plaintext, nil
}

// EncryptedFile is an attachment sealed under the note key. The nonce is
// independent of the message nonce: every encryption operation gets its own.
type EncryptedFile struct {
	Name       string
	Ciphertext []byte
	Nonce      []byte
}

// EncryptFile reads the file at path and seals its contents under key.
func EncryptFile(path string, key []byte) (*EncryptedFile, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}

	return &EncryptedFile{
		Name:       filepath.Base(path),
		Ciphertext: ciphertext,
		Nonce:      nonce,
	}, nil
}
