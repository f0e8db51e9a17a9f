package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	_, err := ResolvePath("")
	assert.Error(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err := ResolvePath("~/mirror")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mirror"), resolved)

	resolved, err = ResolvePath("a/../b")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
	assert.Equal(t, "b", filepath.Base(resolved))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir), "existing dir is fine")

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, FileExists(filepath.Join(dir, "nope")))
	assert.False(t, FileExists(dir), "directories don't count")

	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, FileExists(path))
}

