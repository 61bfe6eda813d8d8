// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database_test

import (
	"fmt"
	"os"
	"testing"

	"codeberg.org/oliverandrich/accountdesk/internal/database"
	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := database.Open(":memory:")

	require.NoError(t, err)
	require.NotNil(t, db)

	err = db.Close()
	require.NoError(t, err)
}

func TestOpen_DefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() {
		_ = os.Chdir(oldWd)
	}()

	db, err := database.Open("")

	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		_ = db.Close()
	}()

	_, err = os.Stat(database.DefaultDSN)
	assert.NoError(t, err)
}

func TestOpen_MigrationsApplied(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='index' AND name='users_email_key'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOpen_ColumnSizesMatchModelLimits(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var columns []struct {
		Name string `db:"name"`
		Type string `db:"type"`
	}
	require.NoError(t, db.Select(&columns, "SELECT name, type FROM pragma_table_info('users')"))

	types := make(map[string]string, len(columns))
	for _, c := range columns {
		types[c.Name] = c.Type
	}
	assert.Equal(t, fmt.Sprintf("VARCHAR(%d)", models.MaxNameLength), types["name"])
	assert.Equal(t, fmt.Sprintf("VARCHAR(%d)", models.MaxEmailLength), types["email"])
}

func TestConnect_NoMigrations(t *testing.T) {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMigrateReset(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, database.MigrateReset(db))

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, database.RunMigrations(db))

	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMigrateDown(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, database.MigrateDown(db))

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestOpen_WithExistingParams(t *testing.T) {
	db, err := database.Open(":memory:?cache=shared")

	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		_ = db.Close()
	}()
}

func TestOpen_PragmasApplied(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var journalMode string
	err = db.Get(&journalMode, "PRAGMA journal_mode")
	require.NoError(t, err)
	// In memory mode WAL is not applied, but the pragma must still answer
	assert.NotEmpty(t, journalMode)

	var foreignKeys int
	err = db.Get(&foreignKeys, "PRAGMA foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, 1, foreignKeys)
}

func TestOpen_FileDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := tmpDir + "/subdir/test.db"

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOpen_ModeMemory(t *testing.T) {
	db, err := database.Open("file::memory:?mode=memory")

	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		_ = db.Close()
	}()
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		dsn      string
		expected database.Dialect
	}{
		{"postgres://user:pw@localhost:5432/app", database.DialectPostgres},
		{"postgresql://localhost/app?sslmode=disable", database.DialectPostgres},
		{"./data/app.db", database.DialectSQLite},
		{":memory:", database.DialectSQLite},
		{"file::memory:?mode=memory", database.DialectSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.expected, database.DetectDialect(tt.dsn))
		})
	}
}
