package ann

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies persisted graph index files (ASCII: "BVWG").
	MagicNumber = 0x42565747
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// headerSize is the fixed byte length of the file header.
	headerSize = 64

	// NoNeighbor pads adjacency rows with fewer than Degree edges.
	NoNeighbor = uint32(0xFFFFFFFF)
)

var (
	// ErrUnreadable is returned when the persisted index cannot be loaded
	// or is structurally incompatible with the vocabulary it must serve.
	ErrUnreadable = errors.New("ann: index unreadable")

	// ErrInvalidMagic indicates the file is not a graph index.
	ErrInvalidMagic = errors.New("ann: invalid magic number")

	// ErrInvalidVersion indicates an unsupported format version.
	ErrInvalidVersion = errors.New("ann: unsupported version")
)

// fileHeader is the 64-byte little-endian header at the start of every
// persisted graph index. Layout is fixed for mmap compatibility.
type fileHeader struct {
	Magic      uint32
	Version    uint32
	ItemCount  uint64 // Number of graph nodes; must equal the vocabulary row count.
	Dimension  uint32 // Vector dimensionality the graph was built for.
	Degree     uint32 // Neighbors per adjacency row.
	EntryPoint uint32 // Node where greedy search starts.
	Padding    [4]byte
	Reserved   [32]byte
}

// ErrIncompatible indicates the persisted index does not match the
// vocabulary it is being loaded against. It unwraps to ErrUnreadable so
// callers can treat both load failures uniformly.
type ErrIncompatible struct {
	What     string
	Expected int
	Actual   int
}

func (e *ErrIncompatible) Error() string {
	return fmt.Sprintf("ann: incompatible index: %s: expected %d, got %d", e.What, e.Expected, e.Actual)
}

func (e *ErrIncompatible) Unwrap() error { return ErrUnreadable }
