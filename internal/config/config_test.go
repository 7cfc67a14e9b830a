package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, 1000, c.Sync.MaxBatch)
	require.Equal(t, 30, c.Snapshots.Retention)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()
	c, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, 100, c.Sync.MaxPageSize)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "lingosync.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9090"

[sync]
max_batch = 50
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", c.Server.Addr)
	require.Equal(t, 50, c.Sync.MaxBatch)
	require.Equal(t, 100, c.Sync.MaxPageSize) // untouched default
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[sync]
max_batch = 0
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
