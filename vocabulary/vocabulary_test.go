package vocabulary

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbovw/bovw/testutil"
)

func makeWords(t *testing.T, n int) [][]float32 {
	t.Helper()
	return testutil.NewRNG(42).UniformVectors(n, Dimension)
}

func writeVocab(t *testing.T, words [][]float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, words))
	return buf.Bytes()
}

func TestLoadReader(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		words := makeWords(t, 10)
		v, err := LoadReader(bytes.NewReader(writeVocab(t, words)))
		require.NoError(t, err)
		require.Equal(t, 10, v.Count())

		// Word identity is positional.
		for i, word := range words {
			assert.Equal(t, word, v.Word(uint32(i)))
		}
	})

	t.Run("Empty", func(t *testing.T) {
		v, err := LoadReader(bytes.NewReader(nil))
		require.NoError(t, err)
		assert.Equal(t, 0, v.Count())
	})

	t.Run("TruncatedTrailingRecordDropped", func(t *testing.T) {
		data := writeVocab(t, makeWords(t, 5))
		// Cut into the middle of the last record's floats.
		data = data[:len(data)-100]

		v, err := LoadReader(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 4, v.Count())
	})

	t.Run("MissingFinalDelimiterKeepsRecord", func(t *testing.T) {
		data := writeVocab(t, makeWords(t, 3))
		data = data[:len(data)-1] // strip the last newline only

		v, err := LoadReader(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 3, v.Count())
	})
}

func TestLoad(t *testing.T) {
	t.Run("FromFile", func(t *testing.T) {
		words := makeWords(t, 8)
		path := filepath.Join(t.TempDir(), "words.dat")
		require.NoError(t, os.WriteFile(path, writeVocab(t, words), 0o644))

		v, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8, v.Count())
		assert.Equal(t, words[3], v.Word(3))
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.dat"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnreadable)
	})

	t.Run("Zstd", func(t *testing.T) {
		words := makeWords(t, 6)
		path := filepath.Join(t.TempDir(), "words.dat.zst")

		f, err := os.Create(path)
		require.NoError(t, err)
		zw, err := zstd.NewWriter(f)
		require.NoError(t, err)
		_, err = zw.Write(writeVocab(t, words))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		require.NoError(t, f.Close())

		v, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 6, v.Count())
		assert.Equal(t, words[0], v.Word(0))
	})

	t.Run("LZ4", func(t *testing.T) {
		words := makeWords(t, 6)
		path := filepath.Join(t.TempDir(), "words.dat.lz4")

		f, err := os.Create(path)
		require.NoError(t, err)
		lw := lz4.NewWriter(f)
		_, err = lw.Write(writeVocab(t, words))
		require.NoError(t, err)
		require.NoError(t, lw.Close())
		require.NoError(t, f.Close())

		v, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 6, v.Count())
	})
}

func TestCheckCount(t *testing.T) {
	v, err := LoadReader(bytes.NewReader(writeVocab(t, makeWords(t, 7))))
	require.NoError(t, err)

	require.NoError(t, v.CheckCount(7))

	// Off by one in either direction is rejected.
	for _, expected := range []int{6, 8} {
		err := v.CheckCount(expected)
		require.Error(t, err)
		var rc *ErrRowCount
		require.ErrorAs(t, err, &rc)
		assert.Equal(t, expected, rc.Expected)
		assert.Equal(t, 7, rc.Actual)
	}
}
