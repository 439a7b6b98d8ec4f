package ann

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openbovw/bovw/distance"
	"github.com/openbovw/bovw/internal/queue"
	"github.com/openbovw/bovw/internal/visited"
	"github.com/openbovw/bovw/vocabulary"
)

// BuildOptions configures offline graph construction.
type BuildOptions struct {
	// Degree is the number of neighbors kept per node.
	Degree int

	// EFConstruction is the candidate list size used while inserting nodes.
	// Larger values produce better graphs and slower builds.
	EFConstruction int
}

// DefaultBuildOptions contains the default construction parameters.
var DefaultBuildOptions = BuildOptions{
	Degree:         16,
	EFConstruction: 100,
}

// Graph is an in-memory kNN graph under construction. It exists only in
// offline tooling; the serving path loads the persisted form via Load.
type Graph struct {
	vocab  *vocabulary.Vocabulary
	rows   [][]uint32
	degree int
	entry  uint32
}

// Build constructs a navigable small-world graph over the vocabulary by
// incremental insertion: each word is connected to its approximate nearest
// predecessors, and oversized neighbor lists are pruned back by distance.
// This is the offline step; production vocabularies are built once and the
// artifact is reused across deployments.
func Build(vocab *vocabulary.Vocabulary, optFns ...func(o *BuildOptions)) (*Graph, error) {
	opts := DefaultBuildOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Degree <= 0 {
		return nil, fmt.Errorf("ann: invalid degree %d", opts.Degree)
	}
	if opts.EFConstruction < opts.Degree {
		opts.EFConstruction = opts.Degree
	}

	count := vocab.Count()
	g := &Graph{
		vocab:  vocab,
		rows:   make([][]uint32, count),
		degree: opts.Degree,
		entry:  0,
	}
	if count == 0 {
		return g, nil
	}

	vis := visited.New(count)
	for id := 1; id < count; id++ {
		nearest := g.searchConstruction(vis, vocab.Word(uint32(id)), uint32(id), opts.EFConstruction)

		limit := opts.Degree
		if len(nearest) < limit {
			limit = len(nearest)
		}
		for _, item := range nearest[:limit] {
			g.connect(uint32(id), item.Node)
			g.connect(item.Node, uint32(id))
		}
	}
	return g, nil
}

// searchConstruction runs the same greedy traversal as Index.Search over
// the partially built graph, returning up to ef nearest nodes ascending.
func (g *Graph) searchConstruction(vis *visited.Set, q []float32, upTo uint32, ef int) []queue.Item {
	defer vis.Reset()

	candidates := queue.NewMin(ef)
	results := queue.NewMax(ef + 1)

	entryDist := distance.SquaredL2(q, g.vocab.Word(g.entry))
	vis.Visit(g.entry)
	candidates.Push(queue.Item{Node: g.entry, Distance: entryDist})
	results.Push(queue.Item{Node: g.entry, Distance: entryDist})

	for candidates.Len() > 0 {
		current, _ := candidates.Pop()
		if worst, ok := results.Top(); ok && results.Len() >= ef && current.Distance > worst.Distance {
			break
		}
		for _, n := range g.rows[current.Node] {
			if n >= upTo || vis.Visited(n) {
				continue
			}
			vis.Visit(n)
			d := distance.SquaredL2(q, g.vocab.Word(n))
			if worst, ok := results.Top(); !ok || results.Len() < ef || d < worst.Distance {
				candidates.Push(queue.Item{Node: n, Distance: d})
				results.Push(queue.Item{Node: n, Distance: d})
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	out := make([]queue.Item, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		out[i], _ = results.Pop()
	}
	return out
}

// connect adds dst to src's neighbor list, pruning back to degree by
// distance when the list overflows.
func (g *Graph) connect(src, dst uint32) {
	row := g.rows[src]
	for _, n := range row {
		if n == dst {
			return
		}
	}
	row = append(row, dst)

	if len(row) > g.degree {
		srcVec := g.vocab.Word(src)
		worst := 0
		worstDist := float32(-1)
		for i, n := range row {
			d := distance.SquaredL2(srcVec, g.vocab.Word(n))
			if d > worstDist {
				worst, worstDist = i, d
			}
		}
		row[worst] = row[len(row)-1]
		row = row[:len(row)-1]
	}
	g.rows[src] = row
}

// WriteTo writes the persisted index format: a 64-byte header followed by
// the row-major adjacency matrix, rows padded with NoNeighbor.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	h := fileHeader{
		Magic:      MagicNumber,
		Version:    Version,
		ItemCount:  uint64(len(g.rows)),
		Dimension:  vocabulary.Dimension,
		Degree:     uint32(g.degree),
		EntryPoint: g.entry,
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return 0, err
	}
	written := int64(headerSize)

	var buf [4]byte
	for _, row := range g.rows {
		for i := range g.degree {
			n := NoNeighbor
			if i < len(row) {
				n = row[i]
			}
			binary.LittleEndian.PutUint32(buf[:], n)
			if _, err := w.Write(buf[:]); err != nil {
				return written, err
			}
			written += 4
		}
	}
	return written, nil
}

// SaveToFile persists the graph atomically: write to a temp file in the
// target directory, fsync, then rename over the destination.
func (g *Graph) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0o644)

	bw := bufio.NewWriterSize(tmp, 256*1024)
	if _, err := g.WriteTo(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}
