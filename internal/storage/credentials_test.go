package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadToken(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "access.key")
	require.NoError(t, SaveToken(path, "  tok-123\n"))

	got, err := LoadToken(path)
	require.NoError(t, err)
	require.Equal(t, "tok-123", got)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestLoadTokenMissingFile(t *testing.T) {
	t.Parallel()

	got, err := LoadToken(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLoadOrCreateMachineID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "machine.id")

	first, err := LoadOrCreateMachineID(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := LoadOrCreateMachineID(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "machine id stable across loads")
}

func TestLoadOrCreateMachineIDIgnoresEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "machine.id")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

	id, err := LoadOrCreateMachineID(path)
	require.NoError(t, err)
	require.NotEmpty(t, id)
}
