package notes

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvoloshins/burnnote/internal/common"
	"github.com/dvoloshins/burnnote/internal/server/models"
)

// InMemoryRepository is a map-backed Repository with the same atomicity
// guarantees as the PostgreSQL implementation. It backs the lifecycle engine
// tests and small single-process deployments.
type InMemoryRepository struct {
	mu    sync.Mutex
	notes map[string]*models.Note
}

// NewInMemoryRepository constructs an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{notes: make(map[string]*models.Note)}
}

func (r *InMemoryRepository) Create(ctx context.Context, note *models.Note) error {
	if len(note.EncryptedContent) == 0 || len(note.IV) == 0 {
		return fmt.Errorf("%w: encrypted content and iv are required", common.ErrValidation)
	}
	if len(note.EncryptedFile) > 0 && len(note.FileIV) == 0 {
		return fmt.Errorf("%w: file iv is required when an encrypted file is set", common.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *note
	r.notes[note.ID] = &clone
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	note, ok := r.notes[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *note
	return &clone, nil
}

// MarkRead holds the repository lock across check and set, matching the
// single-statement conditional UPDATE of the PostgreSQL implementation.
func (r *InMemoryRepository) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	note, ok := r.notes[id]
	if !ok {
		return common.ErrNotFound
	}
	if note.ReadOnce {
		return common.ErrAlreadyRead
	}
	note.ReadOnce = true
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notes, id)
	return nil
}

func (r *InMemoryRepository) ListConsumed(ctx context.Context) ([]*models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Note
	for _, note := range r.notes {
		if note.ReadOnce {
			clone := *note
			result = append(result, &clone)
		}
	}
	return result, nil
}
