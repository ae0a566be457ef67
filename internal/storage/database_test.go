package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "valid path",
			path:    dbPath,
			wantErr: false,
		},
		{
			name:    "invalid path",
			path:    "/invalid/path/to/db.db",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(tt.path)

			if tt.wantErr {
				assert.Error(t, err)
				if db != nil {
					_ = db.Close()
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, db)
			defer func() {
				_ = db.Close()
			}()
			assert.Equal(t, 25, db.Stats().MaxOpenConnections)
		})
	}
}

func TestNew_InMemoryUsesOneConnection(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestNew_EnablesWAL(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	// Run migrations twice
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='ingest_status'").Scan(&count))
	assert.Equal(t, 1, count, "ingest_status table should exist once")
}
