// Package models defines the persisted entities of the burnnote server.
package models

import "time"

// Note is the sole persisted entity: an encrypted one-time note.
//
// The server never decrypts EncryptedContent or EncryptedFile; it stores the
// blobs exactly as the client produced them. Nonce fields are required
// whenever their blob is present.
type Note struct {
	ID               string
	EncryptedContent []byte
	IV               []byte
	CreatedAt        time.Time
	ExpiresAt        *time.Time
	ReadOnce         bool
	PasswordHash     string

	// Optional encrypted attachment. When a blob store is configured the
	// ciphertext lives in object storage under StorageKey and EncryptedFile
	// is empty in the database row.
	FileName      string
	FileType      string
	EncryptedFile []byte
	FileIV        []byte
	StorageKey    string
}

// HasFile reports whether the note carries an encrypted attachment.
func (n *Note) HasFile() bool {
	return len(n.EncryptedFile) > 0 || n.StorageKey != ""
}

// Expired reports whether the note is past its expiry at the given instant.
// Notes without ExpiresAt never expire.
func (n *Note) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}
