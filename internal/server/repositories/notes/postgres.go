// Package notes provides the PostgreSQL-backed repository for one-time note
// persistence, plus an in-memory implementation used in tests.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvoloshins/burnnote/internal/common"
	"github.com/dvoloshins/burnnote/internal/dbx"
	"github.com/dvoloshins/burnnote/internal/server/models"
)

// PostgresRepository implements note storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new note row. The ciphertext and its nonce are mandatory;
// a note without them is rejected with common.ErrValidation before touching
// the database.
func (r *PostgresRepository) Create(ctx context.Context, note *models.Note) error {
	if len(note.EncryptedContent) == 0 || len(note.IV) == 0 {
		return fmt.Errorf("%w: encrypted content and iv are required", common.ErrValidation)
	}
	if len(note.EncryptedFile) > 0 && len(note.FileIV) == 0 {
		return fmt.Errorf("%w: file iv is required when an encrypted file is set", common.ErrValidation)
	}

	query := `
		INSERT INTO notes (id, encrypted_content, iv, created_at, expires_at, read_once,
			password_hash, file_name, file_type, encrypted_file, file_iv, storage_key)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.db.ExecContext(ctx, query,
		note.ID, note.EncryptedContent, note.IV, note.CreatedAt, note.ExpiresAt,
		nullString(note.PasswordHash), nullString(note.FileName), nullString(note.FileType),
		note.EncryptedFile, note.FileIV, nullString(note.StorageKey))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID fetches a note by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	query := `
		SELECT id, encrypted_content, iv, created_at, expires_at, read_once,
			password_hash, file_name, file_type, encrypted_file, file_iv, storage_key
		FROM notes WHERE id=$1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var note models.Note
	var passwordHash, fileName, fileType, storageKey sql.NullString
	err := row.Scan(&note.ID, &note.EncryptedContent, &note.IV, &note.CreatedAt,
		&note.ExpiresAt, &note.ReadOnce, &passwordHash, &fileName, &fileType,
		&note.EncryptedFile, &note.FileIV, &storageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	note.PasswordHash = passwordHash.String
	note.FileName = fileName.String
	note.FileType = fileType.String
	note.StorageKey = storageKey.String
	return &note, nil
}

// MarkRead performs the atomic check-and-set of read_once. The conditional
// UPDATE is the only line that enforces the one-time-read guarantee under
// concurrent access; the follow-up existence check merely classifies the
// failure for the caller.
func (r *PostgresRepository) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET read_once=true WHERE id=$1 AND read_once=false`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notes WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if exists {
		return common.ErrAlreadyRead
	}
	return common.ErrNotFound
}

// Delete removes a note row. Absent rows are not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListConsumed returns notes flagged read_once that still have a row. Only
// the fields the deletion sweep needs are selected.
func (r *PostgresRepository) ListConsumed(ctx context.Context) ([]*models.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, storage_key FROM notes WHERE read_once=true`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Note
	for rows.Next() {
		var note models.Note
		var storageKey sql.NullString
		if err := rows.Scan(&note.ID, &storageKey); err != nil {
			return nil, err
		}
		note.ReadOnce = true
		note.StorageKey = storageKey.String
		result = append(result, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// nullString maps "" to SQL NULL so optional columns stay NULL when unset.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
