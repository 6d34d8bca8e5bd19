package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ContainsUsersMigration(t *testing.T) {
	entries, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	assert.Contains(t, entries, "00001_create_users.sql")

	raw, err := fs.ReadFile(FS, "00001_create_users.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "-- +goose Up")
	assert.Contains(t, string(raw), "refresh_token TEXT")
}

func TestUp_PropagatesGooseError(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return errors.New("migration failed")
	}

	err := Up(context.Background(), nil)
	assert.EqualError(t, err, "migration failed")
	assert.Equal(t, ".", gotDir)
}
