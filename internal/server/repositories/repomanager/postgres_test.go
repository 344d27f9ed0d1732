package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotes_ReturnsRepository(t *testing.T) {
	m := NewPostgresRepositoryManager()
	assert.NotNil(t, m.Notes(nil))
}

func TestRunMigrations_PropagatesGooseError(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	wantErr := errors.New("migration failed")
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return wantErr
	}

	m := NewPostgresRepositoryManager()
	err := m.RunMigrations(context.Background(), nil)
	require.ErrorIs(t, err, wantErr)
}

func TestRunMigrations_UsesEmbeddedFS(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	m := NewPostgresRepositoryManager()
	require.NoError(t, m.RunMigrations(context.Background(), nil))
	assert.Equal(t, ".", gotDir)
}
