package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	f, err := Default.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := Default.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
}

func TestFaultyFS(t *testing.T) {
	t.Run("FailAfterBytes", func(t *testing.T) {
		dir := t.TempDir()
		ffs := NewFaultyFS(nil)
		ffs.AddRule("out.bin", Fault{FailAfterBytes: 10})

		f, err := ffs.OpenFile(filepath.Join(dir, "out.bin"), os.O_WRONLY|os.O_CREATE, 0o644)
		require.NoError(t, err)

		_, err = f.Write(make([]byte, 8))
		require.NoError(t, err)

		n, err := f.Write(make([]byte, 8))
		assert.Error(t, err)
		assert.Equal(t, 2, n)
		_ = f.Close()

		// Partial bytes are left behind, mirroring a real short write.
		info, err := os.Stat(filepath.Join(dir, "out.bin"))
		require.NoError(t, err)
		assert.Equal(t, int64(10), info.Size())
	})

	t.Run("FailOnOpen", func(t *testing.T) {
		dir := t.TempDir()
		ffs := NewFaultyFS(nil)
		ffs.AddRule("denied", Fault{FailOnOpen: true})

		_, err := ffs.OpenFile(filepath.Join(dir, "denied.bin"), os.O_WRONLY|os.O_CREATE, 0o644)
		assert.Error(t, err)
	})

	t.Run("UnmatchedFilesPassThrough", func(t *testing.T) {
		dir := t.TempDir()
		ffs := NewFaultyFS(nil)
		ffs.AddRule("other", Fault{FailOnOpen: true})

		f, err := ffs.OpenFile(filepath.Join(dir, "fine.bin"), os.O_WRONLY|os.O_CREATE, 0o644)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	})
}
