package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("PutOpenRoundTrip", func(t *testing.T) {
		store := newStore(t)
		data := []byte("fourteen bytes per record")
		require.NoError(t, store.Put(ctx, "hits/1.dat", data))

		blob, err := store.Open(ctx, "hits/1.dat")
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 8)
		n, err := blob.ReadAt(ctx, buf, 9)
		require.NoError(t, err)
		assert.Equal(t, 8, n)
		assert.Equal(t, []byte("bytes pe"), buf)

		r, err := blob.Reader(ctx)
		require.NoError(t, err)
		all, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, data, all)
		require.NoError(t, r.Close())
		require.NoError(t, blob.Close())
	})

	t.Run("CreateStreaming", func(t *testing.T) {
		store := newStore(t)
		w, err := store.Create(ctx, "hits/2.dat")
		require.NoError(t, err)
		_, err = w.Write([]byte("part one "))
		require.NoError(t, err)
		_, err = w.Write([]byte("part two"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		blob, err := store.Open(ctx, "hits/2.dat")
		require.NoError(t, err)
		assert.Equal(t, int64(17), blob.Size())
		require.NoError(t, blob.Close())
	})

	t.Run("OpenMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Open(ctx, "nope.dat")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "hits/3.dat", []byte("x")))
		require.NoError(t, store.Delete(ctx, "hits/3.dat"))
		require.NoError(t, store.Delete(ctx, "hits/3.dat"))

		_, err := store.Open(ctx, "hits/3.dat")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListByPrefix", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "hits/10.dat", []byte("a")))
		require.NoError(t, store.Put(ctx, "hits/11.dat", []byte("b")))
		require.NoError(t, store.Put(ctx, "other/1.dat", []byte("c")))

		names, err := store.List(ctx, "hits/")
		require.NoError(t, err)
		assert.Equal(t, []string{"hits/10.dat", "hits/11.dat"}, names)
	})
}

func TestLocalStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		return NewLocalStore(t.TempDir())
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestShipper(t *testing.T) {
	ctx := context.Background()

	writeHitFile := func(t *testing.T, data []byte) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "42.dat")
		require.NoError(t, os.WriteFile(path, data, 0o644))
		return path
	}

	t.Run("ShipsUnderDeterministicKey", func(t *testing.T) {
		store := NewMemoryStore()
		shipper := NewShipper(store)

		data := []byte("records")
		key, err := shipper.Ship(ctx, 42, writeHitFile(t, data), 3)
		require.NoError(t, err)
		assert.Equal(t, "hits/42.dat", key)

		blob, err := store.Open(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), blob.Size())
		require.NoError(t, blob.Close())
	})

	t.Run("CustomPrefix", func(t *testing.T) {
		shipper := NewShipper(NewMemoryStore(), func(o *ShipperOptions) {
			o.Prefix = "tenant-a/hits"
		})
		assert.Equal(t, "tenant-a/hits/7.dat", shipper.Key(7))
	})

	t.Run("RecordsCommit", func(t *testing.T) {
		log := &captureLog{}
		shipper := NewShipper(NewMemoryStore(), func(o *ShipperOptions) {
			o.CommitLog = log
		})

		_, err := shipper.Ship(ctx, 42, writeHitFile(t, []byte("records")), 3)
		require.NoError(t, err)

		require.Len(t, log.commits, 1)
		assert.Equal(t, Commit{ImageID: 42, Key: "hits/42.dat", RecordCount: 3}, log.commits[0])
	})

	t.Run("MissingLocalFile", func(t *testing.T) {
		shipper := NewShipper(NewMemoryStore())
		_, err := shipper.Ship(ctx, 1, filepath.Join(t.TempDir(), "missing.dat"), 0)
		require.Error(t, err)
	})

	t.Run("ThrottledUpload", func(t *testing.T) {
		throttle := &captureThrottle{}
		store := NewMemoryStore()
		shipper := NewShipper(store, func(o *ShipperOptions) {
			o.Throttle = throttle
		})

		data := []byte("every byte passes the budget")
		key, err := shipper.Ship(ctx, 42, writeHitFile(t, data), 2)
		require.NoError(t, err)

		assert.Equal(t, len(data), throttle.bytes)

		blob, err := store.Open(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), blob.Size())
		require.NoError(t, blob.Close())
	})

	t.Run("SetThrottleKeepsConfigured", func(t *testing.T) {
		configured := &captureThrottle{}
		shipper := NewShipper(NewMemoryStore(), func(o *ShipperOptions) {
			o.Throttle = configured
		})
		shipper.SetThrottle(&captureThrottle{})

		_, err := shipper.Ship(ctx, 5, writeHitFile(t, []byte("abc")), 1)
		require.NoError(t, err)
		assert.Equal(t, 3, configured.bytes)
	})
}

type captureThrottle struct {
	bytes int
}

func (c *captureThrottle) AcquireIO(_ context.Context, n int) error {
	c.bytes += n
	return nil
}

type captureLog struct {
	commits []Commit
}

func (l *captureLog) Record(_ context.Context, c Commit) error {
	l.commits = append(l.commits, c)
	return nil
}
