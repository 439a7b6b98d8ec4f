package s3

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbovw/bovw/blobstore"
)

func TestIntegration_S3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("Skipping S3 integration test: S3_BUCKET not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test-bovw-%d/", time.Now().UnixNano())

	store, err := New(ctx, bucket, WithPrefix(prefix))
	require.NoError(t, err)

	t.Run("CreateAndRead", func(t *testing.T) {
		name := "hits/1.dat"
		data := make([]byte, 64*1024)
		_, err := rand.Read(data)
		require.NoError(t, err)

		w, err := store.Create(ctx, name)
		require.NoError(t, err)
		n, err := w.Write(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		require.NoError(t, w.Close())

		names, err := store.List(ctx, "hits/")
		require.NoError(t, err)
		assert.Contains(t, names, name)

		b, err := store.Open(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), b.Size())

		buf := make([]byte, 100)
		n2, err := b.ReadAt(ctx, buf, 1024)
		require.NoError(t, err)
		assert.Equal(t, 100, n2)
		assert.Equal(t, data[1024:1124], buf)

		require.NoError(t, b.Close())
		require.NoError(t, store.Delete(ctx, name))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Open(ctx, "nonexistent")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}
