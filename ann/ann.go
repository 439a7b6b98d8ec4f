// Package ann provides the approximate nearest-neighbor index over the
// visual-word vocabulary.
//
// The index is a navigable small-world kNN graph persisted as an adjacency
// matrix. Construction is an offline step (see Build and cmd/annbuild); the
// serving path only loads the persisted artifact and runs greedy best-first
// search against the vocabulary's vectors. Approximate search trades exact
// nearest-neighbor correctness for speed over a million-word corpus; tie
// ordering is whatever the graph traversal produces.
package ann

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/openbovw/bovw/distance"
	"github.com/openbovw/bovw/internal/mmap"
	"github.com/openbovw/bovw/internal/queue"
	"github.com/openbovw/bovw/internal/visited"
	"github.com/openbovw/bovw/vocabulary"
)

// ErrInvalidK is returned when a query requests a non-positive neighbor count.
var ErrInvalidK = errors.New("ann: k must be positive")

// DefaultEFSearch is the default size of the dynamic candidate list during
// search. Larger values improve recall at the cost of latency.
const DefaultEFSearch = 64

// Options configures index loading.
type Options struct {
	// EFSearch is the candidate list size used by Search. Values below the
	// requested k are raised to k.
	EFSearch int
}

// DefaultOptions contains the default configuration options for the index.
var DefaultOptions = Options{
	EFSearch: DefaultEFSearch,
}

// Result is one query answer: a word identifier and its distance to the query.
type Result struct {
	WordID   uint32
	Distance float32
}

// Index is a read-only approximate nearest-neighbor index over a Vocabulary.
// It is safe for concurrent queries after Load returns.
type Index struct {
	vocab     *vocabulary.Vocabulary
	adjacency []uint32 // count*degree row-major; may alias mapped memory
	degree    int
	count     int
	entry     uint32
	efSearch  int

	mapped *mmap.File // nil when adjacency is heap-backed

	visitedPool sync.Pool
}

// Load opens a persisted graph index and binds it to the vocabulary it was
// built from. The artifact is validated against the vocabulary: mismatched
// dimensionality or item count fails with an error unwrapping to
// ErrUnreadable. The adjacency matrix is memory-mapped; Close releases it.
func Load(vocab *vocabulary.Vocabulary, path string, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.EFSearch <= 0 {
		opts.EFSearch = DefaultEFSearch
	}

	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	idx, err := fromMapped(vocab, m, opts)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return idx, nil
}

func fromMapped(vocab *vocabulary.Vocabulary, m *mmap.File, opts Options) (*Index, error) {
	data := m.Data
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short file (%d bytes)", ErrUnreadable, len(data))
	}

	var h fileHeader
	h.Magic = binary.LittleEndian.Uint32(data[0:])
	h.Version = binary.LittleEndian.Uint32(data[4:])
	h.ItemCount = binary.LittleEndian.Uint64(data[8:])
	h.Dimension = binary.LittleEndian.Uint32(data[16:])
	h.Degree = binary.LittleEndian.Uint32(data[20:])
	h.EntryPoint = binary.LittleEndian.Uint32(data[24:])

	if h.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: %w: got 0x%08x", ErrUnreadable, ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %w: got 0x%08x", ErrUnreadable, ErrInvalidVersion, h.Version)
	}
	if int(h.Dimension) != vocabulary.Dimension {
		return nil, &ErrIncompatible{What: "dimension", Expected: vocabulary.Dimension, Actual: int(h.Dimension)}
	}
	if int(h.ItemCount) != vocab.Count() {
		return nil, &ErrIncompatible{What: "item count", Expected: vocab.Count(), Actual: int(h.ItemCount)}
	}
	if h.Degree == 0 && h.ItemCount > 0 {
		return nil, fmt.Errorf("%w: zero degree", ErrUnreadable)
	}

	wantBody := int(h.ItemCount) * int(h.Degree) * 4
	if len(data)-headerSize != wantBody {
		return nil, fmt.Errorf("%w: body size %d, want %d", ErrUnreadable, len(data)-headerSize, wantBody)
	}
	if h.ItemCount > 0 && h.EntryPoint >= uint32(h.ItemCount) {
		return nil, fmt.Errorf("%w: entry point %d out of range", ErrUnreadable, h.EntryPoint)
	}

	count := int(h.ItemCount)
	idx := &Index{
		vocab:     vocab,
		adjacency: uint32View(data[headerSize:], count*int(h.Degree)),
		degree:    int(h.Degree),
		count:     count,
		entry:     h.EntryPoint,
		efSearch:  opts.EFSearch,
		mapped:    m,
	}
	idx.visitedPool.New = func() any { return visited.New(count) }
	return idx, nil
}

// Close releases the underlying mapping. The index must not be queried
// after Close; the service guarantees this by draining in-flight requests
// before teardown.
func (idx *Index) Close() error {
	if idx.mapped == nil {
		return nil
	}
	m := idx.mapped
	idx.mapped = nil
	idx.adjacency = nil
	return m.Close()
}

// Count returns the number of indexed words.
func (idx *Index) Count() int { return idx.count }

// neighbors returns the adjacency row of node id. Rows are padded with
// NoNeighbor.
func (idx *Index) neighbors(id uint32) []uint32 {
	off := int(id) * idx.degree
	return idx.adjacency[off : off+idx.degree]
}

// Search returns the k approximately nearest visual words to q, ordered by
// ascending distance. If greedy traversal reaches fewer than k nodes (tiny
// or fragmented graphs), the remainder is filled by a linear scan so a
// descriptor always yields its full complement of neighbors.
func (idx *Index) Search(q []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(q) != vocabulary.Dimension {
		return nil, fmt.Errorf("ann: query dimension %d, want %d", len(q), vocabulary.Dimension)
	}
	if idx.count == 0 {
		return nil, nil
	}
	if idx.adjacency == nil && idx.count > 0 {
		return nil, fmt.Errorf("ann: index closed")
	}

	ef := idx.efSearch
	if ef < k {
		ef = k
	}

	vis := idx.visitedPool.Get().(*visited.Set)
	defer func() {
		vis.Reset()
		idx.visitedPool.Put(vis)
	}()

	candidates := queue.NewMin(ef)
	results := queue.NewMax(ef + 1)

	entryDist := distance.SquaredL2(q, idx.vocab.Word(idx.entry))
	vis.Visit(idx.entry)
	candidates.Push(queue.Item{Node: idx.entry, Distance: entryDist})
	results.Push(queue.Item{Node: idx.entry, Distance: entryDist})

	for candidates.Len() > 0 {
		current, _ := candidates.Pop()
		if worst, ok := results.Top(); ok && results.Len() >= ef && current.Distance > worst.Distance {
			break
		}

		for _, n := range idx.neighbors(current.Node) {
			if n == NoNeighbor {
				break
			}
			if vis.Visited(n) {
				continue
			}
			vis.Visit(n)

			d := distance.SquaredL2(q, idx.vocab.Word(n))
			if worst, ok := results.Top(); !ok || results.Len() < ef || d < worst.Distance {
				candidates.Push(queue.Item{Node: n, Distance: d})
				results.Push(queue.Item{Node: n, Distance: d})
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	found := results.Len()
	if found > k {
		found = k
	}
	// Drop overflow beyond k, then read out in ascending order.
	for results.Len() > found {
		results.Pop()
	}
	out := make([]Result, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		item, _ := results.Pop()
		out[i] = Result{WordID: item.Node, Distance: item.Distance}
	}

	if len(out) < k && len(out) < idx.count {
		out = idx.bruteFill(q, k, out)
	}
	return out, nil
}

// bruteFill completes a short result set by scanning the whole vocabulary.
// Only reachable on degenerate graphs; the cost is acceptable there.
func (idx *Index) bruteFill(q []float32, k int, partial []Result) []Result {
	have := make(map[uint32]struct{}, len(partial))
	for _, r := range partial {
		have[r.WordID] = struct{}{}
	}

	top := queue.NewMax(k - len(partial) + 1)
	for id := uint32(0); int(id) < idx.count; id++ {
		if _, ok := have[id]; ok {
			continue
		}
		d := distance.SquaredL2(q, idx.vocab.Word(id))
		top.Push(queue.Item{Node: id, Distance: d})
		if top.Len() > k-len(partial) {
			top.Pop()
		}
	}

	extra := make([]Result, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item, _ := top.Pop()
		extra[i] = Result{WordID: item.Node, Distance: item.Distance}
	}

	out := append(partial, extra...)
	// Keep the combined set ordered by distance.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Distance < out[j-1].Distance; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// uint32View reinterprets b as a []uint32 of length n without copying when
// the platform allows it, falling back to a decode copy otherwise.
func uint32View(b []byte, n int) []uint32 {
	if n == 0 {
		return nil
	}
	if uintptr(unsafe.Pointer(&b[0]))%4 == 0 && isLittleEndian() {
		return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), n)
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func isLittleEndian() bool {
	var test uint16 = 0x0001
	return *(*byte)(unsafe.Pointer(&test)) == 1
}
