package main

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func Test_safeWriteFile(t *testing.T) {
	t.Run("writes a new file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), IdentityFilename)

		require.NoError(t, safeWriteFile(file, []byte("first"), 0600))

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))

		info, err := os.Stat(file)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("replaces an existing file leaving no temporary files", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, IdentityFilename)

		require.NoError(t, safeWriteFile(file, []byte("first"), 0600))
		require.NoError(t, safeWriteFile(file, []byte("second"), 0600))

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}
