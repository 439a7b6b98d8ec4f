package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbovw/bovw/blobstore"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-bovw"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	t.Run("PutAndOpen", func(t *testing.T) {
		data := []byte("hit records go here")
		require.NoError(t, store.Put(ctx, "hits/1.dat", data))

		blob, err := store.Open(ctx, "hits/1.dat")
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, len(data))
		n, err := blob.ReadAt(ctx, buf, 0)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
		assert.Equal(t, data, buf)
		require.NoError(t, blob.Close())
	})

	t.Run("CreateStreaming", func(t *testing.T) {
		w, err := store.Create(ctx, "hits/2.dat")
		require.NoError(t, err)
		_, err = w.Write([]byte("streamed"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		names, err := store.List(ctx, "hits/")
		require.NoError(t, err)
		assert.Contains(t, names, "hits/2.dat")
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Open(ctx, "missing.dat")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "hits/1.dat"))
		require.NoError(t, store.Delete(ctx, "hits/1.dat"))
		require.NoError(t, store.Delete(ctx, "hits/2.dat"))
	})
}
