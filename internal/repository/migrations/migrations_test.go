package migrations

import (
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryDialectHasTheSameMigrationSet(t *testing.T) {
	sqliteFiles, err := fs.Glob(files, "sqlite/*.sql")
	require.NoError(t, err)
	postgresFiles, err := fs.Glob(files, "postgres/*.sql")
	require.NoError(t, err)

	require.NotEmpty(t, sqliteFiles)
	assert.Len(t, postgresFiles, len(sqliteFiles))
}

func TestDirFor(t *testing.T) {
	dir, err := dirFor(goose.DialectSQLite3)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", dir)

	dir, err = dirFor(goose.DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, "postgres", dir)

	_, err = dirFor(goose.DialectMySQL)
	assert.Error(t, err)
}
