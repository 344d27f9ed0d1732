package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dvoloshins/burnnote/internal/common"
	"github.com/dvoloshins/burnnote/internal/logging"
	"github.com/dvoloshins/burnnote/internal/server/blob"
	notesrepo "github.com/dvoloshins/burnnote/internal/server/repositories/notes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
	return logging.NewSlogLogger(slog.New(h))
}

func newTestService(t *testing.T) (*NoteService, *notesrepo.InMemoryRepository) {
	t.Helper()
	repo := notesrepo.NewInMemoryRepository()
	svc := NewNoteService(repo, nil, testLogger(), time.Minute)
	return svc, repo
}

func validParams() CreateNoteParams {
	return CreateNoteParams{
		EncryptedContent: []byte("ciphertext"),
		IV:               []byte("nonce-12byte"),
	}
}

func TestCreateNote_Success(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateNote(ctx, validParams())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	note, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, note.ReadOnce)
	assert.Equal(t, []byte("ciphertext"), note.EncryptedContent)
}

func TestCreateNote_RejectsMissingIV(t *testing.T) {
	svc, repo := newTestService(t)

	params := validParams()
	params.IV = nil
	_, err := svc.CreateNote(context.Background(), params)
	assert.ErrorIs(t, err, common.ErrValidation)

	consumed, err := repo.ListConsumed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, consumed)
}

func TestCreateNote_RejectsPastExpiry(t *testing.T) {
	svc, _ := newTestService(t)

	past := time.Now().Add(-time.Second)
	params := validParams()
	params.ExpiresAt = &past
	_, err := svc.CreateNote(context.Background(), params)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCreateNote_RejectsFileWithoutIV(t *testing.T) {
	svc, _ := newTestService(t)

	params := validParams()
	params.EncryptedFile = []byte("file-ciphertext")
	params.FileName = "doc.pdf"
	_, err := svc.CreateNote(context.Background(), params)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCreateNote_RejectsOrphanAttachmentMetadata(t *testing.T) {
	svc, _ := newTestService(t)

	params := validParams()
	params.FileName = "doc.pdf"
	_, err := svc.CreateNote(context.Background(), params)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestReadNote_UnknownIDIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ReadNote(context.Background(), "missing", "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonAbsent, denied.Reason)
}

// The full lifecycle: create, read, confirm, then the note is gone for
// everyone. A consumed note is reported exactly like an absent one.
func TestNoteLifecycle_CreateReadConfirm(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateNote(ctx, validParams())
	require.NoError(t, err)

	// reading does not consume
	res, err := svc.ReadNote(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), res.EncryptedContent)

	note, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, note.ReadOnce, "fetching ciphertext must not mark the note read")

	// a second read before confirmation still works
	_, err = svc.ReadNote(ctx, id, "")
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmRead(ctx, id))

	_, err = svc.ReadNote(ctx, id, "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonConsumed, denied.Reason)
}

func TestConfirmRead_SecondAttemptIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateNote(ctx, validParams())
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmRead(ctx, id))
	assert.ErrorIs(t, svc.ConfirmRead(ctx, id), common.ErrNotFound)
	assert.ErrorIs(t, svc.ConfirmRead(ctx, "missing"), common.ErrNotFound)
}

// Two simultaneous confirmations race for the same note; the atomic
// mark-read guarantees exactly one winner.
func TestConfirmRead_ConcurrentExactlyOneSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateNote(ctx, validParams())
	require.NoError(t, err)

	const readers = 2
	results := make([]error, readers)
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = svc.ConfirmRead(ctx, id)
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, common.ErrNotFound)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestReadNote_PasswordGate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	params := validParams()
	params.PasswordHash = "3efda9c3df2a0297e29dff2d0e38b319bdca2f9f0ff32a8fc4676d8ad2d41a0f"
	id, err := svc.CreateNote(ctx, params)
	require.NoError(t, err)

	// wrong password is rejected without consuming the read
	_, err = svc.ReadNote(ctx, id, "0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	// missing password likewise
	_, err = svc.ReadNote(ctx, id, "")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	// the right password still succeeds afterwards
	res, err := svc.ReadNote(ctx, id, params.PasswordHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), res.EncryptedContent)
}

func TestReadNote_ExpiredNoteIsDeletedOnAccess(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	expires := time.Now().Add(50 * time.Millisecond)
	params := validParams()
	params.ExpiresAt = &expires
	id, err := svc.CreateNote(ctx, params)
	require.NoError(t, err)

	svc.now = func() time.Time { return expires.Add(time.Second) }

	_, err = svc.ReadNote(ctx, id, "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonExpired, denied.Reason)

	// delete-on-access removed the row itself
	_, err = repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReadNote_ExpiryCheckedBeforePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Minute)
	params := validParams()
	params.ExpiresAt = &expires
	params.PasswordHash = "deadbeef"
	id, err := svc.CreateNote(ctx, params)
	require.NoError(t, err)

	svc.now = func() time.Time { return expires.Add(time.Second) }

	// even with the wrong password an expired note reports not-found,
	// never unauthorized
	_, err = svc.ReadNote(ctx, id, "wrong")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateNote_OffloadsAttachmentToBlobStore(t *testing.T) {
	repo := notesrepo.NewInMemoryRepository()
	blobs := blob.NewMemoryStore()
	svc := NewNoteService(repo, blobs, testLogger(), time.Minute)
	ctx := context.Background()

	params := validParams()
	params.EncryptedFile = []byte("file-ciphertext")
	params.FileIV = []byte("file-nonce")
	params.FileName = "doc.pdf"
	params.FileType = "application/pdf"

	id, err := svc.CreateNote(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 1, blobs.Len())

	note, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, note.EncryptedFile, "ciphertext must live in the blob store, not the row")
	require.NotEmpty(t, note.StorageKey)

	// read loads the attachment back
	res, err := svc.ReadNote(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("file-ciphertext"), res.EncryptedFile)
	assert.Equal(t, "doc.pdf", res.FileName)
	assert.Equal(t, []byte("file-nonce"), res.FileIV)
}

func TestReadNote_ExpiredAttachmentRemovedFromBlobStore(t *testing.T) {
	repo := notesrepo.NewInMemoryRepository()
	blobs := blob.NewMemoryStore()
	svc := NewNoteService(repo, blobs, testLogger(), time.Minute)
	ctx := context.Background()

	expires := time.Now().Add(time.Minute)
	params := validParams()
	params.ExpiresAt = &expires
	params.EncryptedFile = []byte("file-ciphertext")
	params.FileIV = []byte("file-nonce")
	params.FileName = "doc.pdf"

	id, err := svc.CreateNote(ctx, params)
	require.NoError(t, err)
	require.Equal(t, 1, blobs.Len())

	svc.now = func() time.Time { return expires.Add(time.Second) }
	_, err = svc.ReadNote(ctx, id, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 0, blobs.Len())
}

func TestCreateNote_BlobPutFailureSurfaces(t *testing.T) {
	repo := notesrepo.NewInMemoryRepository()
	svc := NewNoteService(repo, failingBlobStore{}, testLogger(), time.Minute)

	params := validParams()
	params.EncryptedFile = []byte("file-ciphertext")
	params.FileIV = []byte("file-nonce")

	_, err := svc.CreateNote(context.Background(), params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attachment store error")
}

type failingBlobStore struct{}

func (failingBlobStore) Put(ctx context.Context, key string, data []byte) error {
	return errors.New("bucket unavailable")
}

func (failingBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("bucket unavailable")
}

func (failingBlobStore) Delete(ctx context.Context, key string) error {
	return errors.New("bucket unavailable")
}
