// Package blob provides object storage for encrypted note attachments.
//
// The server never sees attachment plaintext: the blobs written here are
// AES-GCM ciphertext produced by the client. Offloading keeps multi-megabyte
// attachments out of the notes table.
package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the attachment storage contract. Implementations must treat
// Delete of an absent key as a no-op, matching the note deletion semantics.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// RandomStorageKey returns a date-partitioned object key for a new attachment.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("attachments/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}
