package cliutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatabaseURL(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	dial, isSqlite, err := ParseDatabaseURL("sqlite://" + filepath.Join(dir, "nested", "activity.db"))
	assert.NoError(err)
	assert.True(isSqlite)
	assert.Equal("sqlite", dial.Name())
	assert.DirExists(filepath.Join(dir, "nested"))

	dial, isSqlite, err = ParseDatabaseURL("postgres://u:p@localhost:5432/moltguard")
	assert.NoError(err)
	assert.False(isSqlite)
	assert.Equal("postgres", dial.Name())

	_, _, err = ParseDatabaseURL("postgres=host=localhost dbname=moltguard")
	assert.NoError(err)

	for _, bad := range []string{"", "mysql://localhost/x", "sqlite://"} {
		_, _, err = ParseDatabaseURL(bad)
		assert.Error(err, bad)
	}
}

func TestSetupDatabaseSqlite(t *testing.T) {
	db, err := SetupDatabase("sqlite://"+filepath.Join(t.TempDir(), "a.db"), 8, nil)
	require.NoError(t, err)
	sqldb, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqldb.Stats().MaxOpenConnections)
}
