package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbovw/bovw"
)

func TestImageID(t *testing.T) {
	id, err := imageID("input/42.jpg")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)

	id, err = imageID("7.png")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), id)

	_, err = imageID("input/cat.jpg")
	assert.Error(t, err)

	_, err = imageID("input/-1.jpg")
	assert.Error(t, err)
}

type stubService struct {
	outcome  bovw.Outcome
	closeErr error
	closed   bool
}

func (s *stubService) ProcessBatch(_ context.Context, reqs []bovw.ImageRequest) []bovw.Result {
	out := make([]bovw.Result, len(reqs))
	for i, r := range reqs {
		out[i] = bovw.Result{ImageID: r.ImageID, Outcome: s.outcome}
	}
	return out
}

func (s *stubService) Close() error {
	s.closed = true
	return s.closeErr
}

func TestQuantizeFiles(t *testing.T) {
	ctx := context.Background()

	writeFile := func(t *testing.T, name string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte("image bytes"), 0o644))
		return path
	}

	t.Run("ClosesOnSuccess", func(t *testing.T) {
		svc := &stubService{outcome: bovw.OutcomeOk}
		err := quantizeFiles(ctx, svc, []string{writeFile(t, "1.png")})
		require.NoError(t, err)
		assert.True(t, svc.closed)
	})

	t.Run("ReportsCloseFailure", func(t *testing.T) {
		closeErr := errors.New("munmap failed")
		svc := &stubService{outcome: bovw.OutcomeOk, closeErr: closeErr}

		err := quantizeFiles(ctx, svc, []string{writeFile(t, "2.png")})
		assert.ErrorIs(t, err, closeErr)
	})

	t.Run("ProcessingFailureTakesPrecedence", func(t *testing.T) {
		svc := &stubService{outcome: bovw.OutcomeGenericError, closeErr: errors.New("also failed")}

		err := quantizeFiles(ctx, svc, []string{writeFile(t, "3.png")})
		require.Error(t, err)
		assert.NotErrorIs(t, err, svc.closeErr)
		assert.True(t, svc.closed)
	})

	t.Run("ClosesOnBadFileName", func(t *testing.T) {
		svc := &stubService{outcome: bovw.OutcomeOk}
		err := quantizeFiles(ctx, svc, []string{writeFile(t, "notanumber.png")})
		require.Error(t, err)
		assert.True(t, svc.closed)
	})
}
