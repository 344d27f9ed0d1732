// Package services implements the note lifecycle engine: creation, the
// read-gate evaluation, one-time consumption, and deferred physical deletion.
//
// The engine is the only writer of the read_once flag and the only initiator
// of deletes. Everything it refuses to serve is reported to callers as a
// common sentinel error; the distinct denial reason survives internally for
// logging and tests.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dvoloshins/burnnote/internal/common"
	"github.com/dvoloshins/burnnote/internal/logging"
	"github.com/dvoloshins/burnnote/internal/server/blob"
	"github.com/dvoloshins/burnnote/internal/server/models"
	notesrepo "github.com/dvoloshins/burnnote/internal/server/repositories/notes"
	"github.com/google/uuid"
)

// DefaultDeleteGrace is the window between read confirmation and physical
// deletion, left for in-flight delivery to finish.
const DefaultDeleteGrace = 30 * time.Second

// DenialReason tags why a note read was refused. The boundary flattens every
// reason to a generic not-found response; the tag exists for logs and tests.
type DenialReason int

const (
	ReasonAbsent DenialReason = iota
	ReasonConsumed
	ReasonExpired
)

func (r DenialReason) String() string {
	switch r {
	case ReasonConsumed:
		return "consumed"
	case ReasonExpired:
		return "expired"
	default:
		return "absent"
	}
}

// DeniedError carries the internal denial reason while matching
// common.ErrNotFound through errors.Is.
type DeniedError struct {
	Reason DenialReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("note denied: %s", e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return common.ErrNotFound
}

// CreateNoteParams is the statically-typed creation request. Blob fields are
// ciphertext exactly as the client produced them.
type CreateNoteParams struct {
	EncryptedContent []byte
	IV               []byte
	PasswordHash     string
	ExpiresAt        *time.Time
	FileName         string
	FileType         string
	EncryptedFile    []byte
	FileIV           []byte
}

// ReadResult is the ciphertext payload released to a reader.
type ReadResult struct {
	EncryptedContent []byte
	IV               []byte
	FileName         string
	FileType         string
	EncryptedFile    []byte
	FileIV           []byte
}

// NoteService owns the note state machine. A note is ACTIVE until either its
// expiry passes (observed lazily at read time) or a reader confirms
// consumption, after which a scheduled task physically deletes the row.
type NoteService struct {
	repo      notesrepo.Repository
	blobs     blob.Store // nil means attachments stay inline in the row
	scheduler *DeletionScheduler
	logger    logging.Logger
	grace     time.Duration
	now       func() time.Time
}

// NewNoteService wires the engine. blobs may be nil; grace <= 0 falls back to
// DefaultDeleteGrace.
func NewNoteService(repo notesrepo.Repository, blobs blob.Store, logger logging.Logger, grace time.Duration) *NoteService {
	if grace <= 0 {
		grace = DefaultDeleteGrace
	}
	s := &NoteService{
		repo:   repo,
		blobs:  blobs,
		logger: logger.With("module", "note_service"),
		grace:  grace,
		now:    time.Now,
	}
	s.scheduler = NewDeletionScheduler(repo, blobs, logger)
	return s
}

// Scheduler exposes the deletion scheduler so the app can run its worker
// loop and the startup sweep.
func (s *NoteService) Scheduler() *DeletionScheduler {
	return s.scheduler
}

// CreateNote validates the request and persists a new ACTIVE note. When a
// blob store is configured the encrypted attachment is offloaded there and
// only its storage key is kept in the row.
func (s *NoteService) CreateNote(ctx context.Context, params CreateNoteParams) (string, error) {
	now := s.now()

	if len(params.EncryptedContent) == 0 || len(params.IV) == 0 {
		return "", fmt.Errorf("%w: encrypted content and iv are required", common.ErrValidation)
	}
	if params.ExpiresAt != nil && !params.ExpiresAt.After(now) {
		return "", fmt.Errorf("%w: expiry must be in the future", common.ErrValidation)
	}
	if len(params.EncryptedFile) > 0 && len(params.FileIV) == 0 {
		return "", fmt.Errorf("%w: file iv is required when an encrypted file is set", common.ErrValidation)
	}
	if len(params.EncryptedFile) == 0 && (params.FileName != "" || len(params.FileIV) > 0) {
		return "", fmt.Errorf("%w: attachment metadata without encrypted file", common.ErrValidation)
	}

	note := &models.Note{
		ID:               uuid.NewString(),
		EncryptedContent: params.EncryptedContent,
		IV:               params.IV,
		CreatedAt:        now,
		ExpiresAt:        params.ExpiresAt,
		PasswordHash:     params.PasswordHash,
		FileName:         params.FileName,
		FileType:         params.FileType,
		EncryptedFile:    params.EncryptedFile,
		FileIV:           params.FileIV,
	}

	if s.blobs != nil && len(note.EncryptedFile) > 0 {
		key := blob.RandomStorageKey()
		if err := s.blobs.Put(ctx, key, note.EncryptedFile); err != nil {
			return "", fmt.Errorf("attachment store error: %w", err)
		}
		note.StorageKey = key
		note.EncryptedFile = nil
	}

	if err := s.repo.Create(ctx, note); err != nil {
		if note.StorageKey != "" {
			if derr := s.blobs.Delete(ctx, note.StorageKey); derr != nil {
				s.logger.Warn(ctx, "failed to remove orphaned attachment", "storage_key", note.StorageKey, "error", derr)
			}
		}
		return "", err
	}

	return note.ID, nil
}

// ReadNote evaluates the read gate in strict order: existence, consumption,
// expiry, password. Passing the gate releases the ciphertext but does NOT
// mark the note read; consumption is confirmed separately via ConfirmRead.
func (s *NoteService) ReadNote(ctx context.Context, id string, providedPasswordHash string) (*ReadResult, error) {
	note, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		s.logger.Debug(ctx, "read denied", "note_id", id, "reason", ReasonAbsent)
		return nil, &DeniedError{Reason: ReasonAbsent}
	}
	if err != nil {
		return nil, err
	}

	// A consumed note is indistinguishable from one that never existed.
	if note.ReadOnce {
		s.logger.Debug(ctx, "read denied", "note_id", id, "reason", ReasonConsumed)
		return nil, &DeniedError{Reason: ReasonConsumed}
	}

	// Lazy expiry: first access past the deadline cleans the note up.
	if note.Expired(s.now()) {
		s.deleteNow(ctx, note.ID, note.StorageKey)
		s.logger.Debug(ctx, "read denied", "note_id", id, "reason", ReasonExpired)
		return nil, &DeniedError{Reason: ReasonExpired}
	}

	// A failed password attempt never consumes the one-time read.
	if note.PasswordHash != "" {
		if subtle.ConstantTimeCompare([]byte(note.PasswordHash), []byte(providedPasswordHash)) != 1 {
			return nil, common.ErrUnauthorized
		}
	}

	result := &ReadResult{
		EncryptedContent: note.EncryptedContent,
		IV:               note.IV,
		FileName:         note.FileName,
		FileType:         note.FileType,
		EncryptedFile:    note.EncryptedFile,
		FileIV:           note.FileIV,
	}

	if note.StorageKey != "" {
		if s.blobs == nil {
			return nil, fmt.Errorf("%w: attachment offloaded but no blob store configured", common.ErrInternal)
		}
		data, err := s.blobs.Get(ctx, note.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("attachment load error: %w", err)
		}
		result.EncryptedFile = data
	}

	return result, nil
}

// ConfirmRead atomically consumes the note and schedules its physical
// deletion after the grace window. Exactly one confirmation per note can
// succeed; later attempts and unknown ids both surface as not found.
func (s *NoteService) ConfirmRead(ctx context.Context, id string) error {
	note, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return &DeniedError{Reason: ReasonAbsent}
	}
	if err != nil {
		return err
	}

	err = s.repo.MarkRead(ctx, id)
	switch {
	case errors.Is(err, common.ErrAlreadyRead):
		return &DeniedError{Reason: ReasonConsumed}
	case errors.Is(err, common.ErrNotFound):
		return &DeniedError{Reason: ReasonAbsent}
	case err != nil:
		return err
	}

	s.scheduler.Schedule(id, note.StorageKey, s.now().Add(s.grace))
	s.logger.Info(ctx, "note consumed", "note_id", id, "delete_in", s.grace)
	return nil
}

// deleteNow removes a note and its offloaded attachment immediately.
// Failures are logged only: the note is already unreadable, so a leftover
// row is a hygiene issue, not a correctness issue.
func (s *NoteService) deleteNow(ctx context.Context, id, storageKey string) {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error(ctx, "failed to delete expired note", "note_id", id, "error", err)
	}
	if storageKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, storageKey); err != nil {
			s.logger.Error(ctx, "failed to delete expired attachment", "note_id", id, "error", err)
		}
	}
}
