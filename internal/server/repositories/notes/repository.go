package notes

import (
	"context"

	"github.com/dvoloshins/burnnote/internal/server/models"
)

// Repository is the persistence contract for notes.
//
// MarkRead is the single concurrency-critical operation: implementations must
// perform an atomic conditional transition of read_once from false to true so
// that two racing readers cannot both observe success.
type Repository interface {
	// Create inserts a new note with ReadOnce=false. It fails with
	// common.ErrValidation if the ciphertext or its nonce is missing.
	Create(ctx context.Context, note *models.Note) error

	// GetByID returns the note or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Note, error)

	// MarkRead flips read_once from false to true. It returns
	// common.ErrAlreadyRead if the note was already consumed and
	// common.ErrNotFound if no such note exists.
	MarkRead(ctx context.Context, id string) error

	// Delete removes the note. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// ListConsumed returns notes already marked read but not yet physically
	// deleted. Used by the startup sweep.
	ListConsumed(ctx context.Context) ([]*models.Note, error)
}
