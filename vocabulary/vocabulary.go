// Package vocabulary loads the fixed visual-word vocabulary used as the
// quantization corpus.
//
// The on-disk format is a sequence of records, each 128 little-endian
// float32 values followed by a single newline delimiter. Word identity is
// positional: word i is the i-th record in file order, so the file must
// never be reordered or partially rewritten.
package vocabulary

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Dimension is the dimensionality of every visual word and descriptor.
const Dimension = 128

// DefaultSize is the expected number of words in a production vocabulary.
const DefaultSize = 1_000_000

// recordSize is the byte length of one record's float payload.
const recordSize = Dimension * 4

// ErrUnreadable is returned when the vocabulary source cannot be opened.
var ErrUnreadable = errors.New("vocabulary: unreadable")

// ErrRowCount indicates the loaded vocabulary does not have the configured
// number of words. This is fatal: word identifiers are positional, so a
// short or long vocabulary silently shifts the meaning of every identifier
// downstream.
type ErrRowCount struct {
	Expected int
	Actual   int
}

func (e *ErrRowCount) Error() string {
	return fmt.Sprintf("vocabulary: row count mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Vocabulary is the fixed, ordered, read-only collection of visual words.
// It is safe for concurrent use after Load returns.
type Vocabulary struct {
	data  []float32 // count * Dimension, single backing array
	count int
}

// Load reads a vocabulary file from path.
//
// Files ending in ".zst" or ".lz4" are decompressed transparently; a raw
// 128-float-per-word vocabulary compresses well and large deployments ship
// it compressed.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	r, closeFn, err := wrapDecompression(f, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer closeFn()

	return LoadReader(r)
}

// LoadReader reads vocabulary records from r until the stream ends.
//
// A record that cannot be fully read (short read on the floats) terminates
// ingestion without invalidating the records already read: a truncated
// trailing record is silently dropped, not an error. Arbitrary bytes
// between the float payload and the newline delimiter are skipped.
func LoadReader(r io.Reader) (*Vocabulary, error) {
	br := bufio.NewReaderSize(r, 256*1024)

	var (
		data []float32
		buf  [recordSize]byte
	)

	for {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				break // truncated trailing record: drop it
			}
			return nil, fmt.Errorf("vocabulary: read record: %w", err)
		}

		base := len(data)
		data = append(data, make([]float32, Dimension)...)
		for i := range Dimension {
			bits := binary.LittleEndian.Uint32(buf[i*4:])
			data[base+i] = math.Float32frombits(bits)
		}

		// Skip to the end of the record. EOF here still keeps the record:
		// the floats were complete, only the delimiter is missing.
		if _, err := br.ReadBytes('\n'); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("vocabulary: skip delimiter: %w", err)
		}
	}

	return &Vocabulary{data: data, count: len(data) / Dimension}, nil
}

// Count returns the number of words in the vocabulary.
func (v *Vocabulary) Count() int { return v.count }

// Word returns the vector of the word at the given 0-based position.
// The returned slice aliases the vocabulary's backing array and must be
// treated as read-only.
func (v *Vocabulary) Word(i uint32) []float32 {
	off := int(i) * Dimension
	return v.data[off : off+Dimension : off+Dimension]
}

// CheckCount verifies the vocabulary holds exactly expected words.
func (v *Vocabulary) CheckCount(expected int) error {
	if v.count != expected {
		return &ErrRowCount{Expected: expected, Actual: v.count}
	}
	return nil
}

// Write serializes words to w in the vocabulary file format. It is used by
// offline tooling and tests; the serving path never writes vocabularies.
func Write(w io.Writer, words [][]float32) error {
	bw := bufio.NewWriterSize(w, 256*1024)
	var buf [4]byte

	for i, word := range words {
		if len(word) != Dimension {
			return fmt.Errorf("vocabulary: word %d has dimension %d, want %d", i, len(word), Dimension)
		}
		for _, f := range word {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// wrapDecompression wraps r in a decompressor chosen by file extension.
// The returned close function releases decompressor resources; the caller
// still owns the underlying file.
func wrapDecompression(r io.Reader, path string) (io.Reader, func(), error) {
	switch filepath.Ext(path) {
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case ".lz4":
		return lz4.NewReader(r), func() {}, nil
	default:
		return r, func() {}, nil
	}
}
