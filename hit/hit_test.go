package hit

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbovw/bovw/internal/fs"
)

func TestEncodeDecode(t *testing.T) {
	h := Hit{
		WordID:  123456,
		ImageID: 789,
		Angle:   40000,
		X:       1,
		Y:       65535,
	}

	b := h.AppendBinary(nil)
	require.Len(t, b, RecordSize)

	// Little-endian field layout.
	assert.Equal(t, []byte{0x40, 0xE2, 0x01, 0x00}, b[0:4])
	assert.Equal(t, []byte{0x15, 0x03, 0x00, 0x00}, b[4:8])

	got, err := DecodeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeRecordShort(t *testing.T) {
	_, err := DecodeRecord(make([]byte, RecordSize-1))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestQuantizeAngle(t *testing.T) {
	assert.Equal(t, uint16(0), QuantizeAngle(0))
	assert.Equal(t, uint16(16384), QuantizeAngle(90))
	assert.Equal(t, uint16(32768), QuantizeAngle(180))

	// Approaching the full circle approaches but never reaches 65536.
	assert.Equal(t, uint16(65535), QuantizeAngle(359.999))
	assert.Equal(t, uint16(65535), QuantizeAngle(360))
	assert.Equal(t, uint16(65535), QuantizeAngle(400))

	// Monotonic non-decreasing.
	prev := uint16(0)
	for deg := float32(0); deg < 360; deg += 0.5 {
		q := QuantizeAngle(deg)
		assert.GreaterOrEqual(t, q, prev)
		prev = q
	}
}

func TestQuantizeCoord(t *testing.T) {
	assert.Equal(t, uint16(0), QuantizeCoord(0, 256))
	assert.Equal(t, uint16(32768), QuantizeCoord(128, 256))
	assert.Equal(t, uint16(65280), QuantizeCoord(255, 256))
	assert.Equal(t, uint16(65535), QuantizeCoord(256, 256))

	// Degenerate extents quantize to zero rather than dividing by it.
	assert.Equal(t, uint16(0), QuantizeCoord(10, 0))
	assert.Equal(t, uint16(0), QuantizeCoord(-3, 256))
}

func TestWriter(t *testing.T) {
	t.Run("AppendAndValidate", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWriter(nil, dir, 42)
		require.NoError(t, err)

		for i := range 10 {
			require.NoError(t, w.Append(Hit{WordID: uint32(i), ImageID: 42}))
		}
		require.Equal(t, 10, w.Count())
		require.NoError(t, w.Close())

		path := FilePath(dir, 42)
		assert.Equal(t, filepath.Join(dir, "42.dat"), path)

		n, err := ValidateFile(nil, path)
		require.NoError(t, err)
		assert.Equal(t, 10, n)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Len(t, data, 10*RecordSize)

		// Records decode back in append order.
		third, err := DecodeRecord(data[2*RecordSize:])
		require.NoError(t, err)
		assert.Equal(t, uint32(2), third.WordID)
		assert.Equal(t, uint32(42), third.ImageID)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWriter(nil, dir, 7)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		n, err := ValidateFile(nil, FilePath(dir, 7))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("CreateFailure", func(t *testing.T) {
		faulty := fs.NewFaultyFS(nil)
		faulty.AddRule("13.dat", fs.Fault{FailOnOpen: true, FailAfterBytes: -1})

		_, err := NewWriter(faulty, t.TempDir(), 13)
		require.Error(t, err)
	})

	t.Run("WrapWriter", func(t *testing.T) {
		// Every flushed byte goes through the wrap, which is where the
		// pipeline attaches its IO budget.
		dir := t.TempDir()
		counter := &countingWriter{}
		w, err := NewWriter(nil, dir, 5, func(o *WriterOptions) {
			o.WrapWriter = func(inner io.Writer) io.Writer {
				counter.w = inner
				return counter
			}
		})
		require.NoError(t, err)

		for i := range 6 {
			require.NoError(t, w.Append(Hit{WordID: uint32(i), ImageID: 5}))
		}
		require.NoError(t, w.Close())

		assert.Equal(t, 6*RecordSize, counter.n)

		n, err := ValidateFile(nil, FilePath(dir, 5))
		require.NoError(t, err)
		assert.Equal(t, 6, n)
	})

	t.Run("TruncatedOnWriteFailure", func(t *testing.T) {
		dir := t.TempDir()
		faulty := fs.NewFaultyFS(nil)
		// Fail mid-record: only one complete record plus a fragment lands.
		faulty.AddRule("99.dat", fs.Fault{FailAfterBytes: RecordSize + 5})

		w, err := NewWriter(faulty, dir, 99)
		require.NoError(t, err)

		for i := range 3 {
			// Buffered writes surface the fault at flush time at the latest.
			_ = w.Append(Hit{WordID: uint32(i), ImageID: 99})
		}
		require.Error(t, w.Close())

		// The partial file stays on disk and validation flags it.
		n, err := ValidateFile(faulty, FilePath(dir, 99))
		assert.ErrorIs(t, err, ErrTruncated)
		assert.Equal(t, 1, n)
	})
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
