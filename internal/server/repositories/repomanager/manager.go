// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dvoloshins/burnnote/internal/dbx"
	"github.com/dvoloshins/burnnote/internal/server/repositories/notes"
)

// RepositoryManager vends repository implementations bound to a database
// handle and exposes a schema migration hook.
type RepositoryManager interface {
	Notes(db dbx.DBTX) notes.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
