package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sync history", "add_sync_history"},
		{"Add-Sync-History", "add_sync_history"},
		{"ADD_SYNC_HISTORY", "add_sync_history"},
		{"add__sync__history", "add_sync_history"},
		{"Add Index 2", "add_index_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "create products", "Local product store")
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_products.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_create_products.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: create products")
	assert.Contains(t, string(up), "Local product store")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")

	t.Run("numbers past the highest existing version", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_add_index.up.sql"), nil, 0o644))

		next, err := CreateMigration(dir, "add sync history", "")
		require.NoError(t, err)
		assert.Equal(t, "000008", next.Version)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := CreateMigration(dir, "!!!", "")
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("missing directory lists nothing", func(t *testing.T) {
		names, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("lists up files in version order", func(t *testing.T) {
		dir := t.TempDir()
		for _, f := range []string{
			"000002_b.up.sql", "000002_b.down.sql",
			"000001_a.up.sql", "000001_a.down.sql",
			"README.md",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o644))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

		names, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_a", "000002_b"}, names)
	})
}

func TestEmbeddedVersions(t *testing.T) {
	names, err := EmbeddedVersions()
	require.NoError(t, err)
	assert.Contains(t, names, "000001_create_products")
}
