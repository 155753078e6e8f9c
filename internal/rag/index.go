package rag

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// Index artifact filenames within the index directory.
const (
	vectorsFile = "vectors.gob"
	chunksFile  = "chunks.gob"
)

// indexEntry pairs a vector with the chunk it embeds. An entry cannot
// exist with one half missing.
type indexEntry struct {
	vector []float32
	chunk  Chunk
}

// FlatIndex is an exact nearest-neighbor index over embedding vectors with
// squared-Euclidean distance. Every vector is stored as-is and scanned
// linearly at query time, which is exact and fast enough for corpora in
// the tens of thousands of passages.
//
// FlatIndex is not safe for concurrent use; callers that share an index
// across goroutines must serialize access.
type FlatIndex struct {
	dimension int
	entries   []indexEntry
}

// indexSnapshot is the gob wire form of the vector artifact.
type indexSnapshot struct {
	Dimension int
	Vectors   [][]float32
}

// NewFlatIndex returns an empty index. The dimension is fixed by the
// first vectors added.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{}
}

// Create replaces the index contents with the given vectors and chunks.
func (ix *FlatIndex) Create(ctx context.Context, vectors [][]float32, chunks []Chunk) error {
	ix.dimension = 0
	ix.entries = nil
	return ix.Add(ctx, vectors, chunks)
}

// Add appends vectors and their chunks to the index. The first batch fixes
// the index dimension. Validation happens before any mutation, so a failed
// Add leaves the index exactly as it was.
func (ix *FlatIndex) Add(ctx context.Context, vectors [][]float32, chunks []Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors, %d chunks", ErrLengthMismatch, len(vectors), len(chunks))
	}
	if len(vectors) == 0 {
		return nil
	}

	dim := ix.dimension
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return fmt.Errorf("%w: zero-length vector", ErrDimensionMismatch)
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index has %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
	}

	if ix.dimension == 0 {
		ix.dimension = dim
		logging.FromContext(ctx).Info("index: created", slog.Int("dimension", dim))
	}
	for i := range vectors {
		ix.entries = append(ix.entries, indexEntry{vector: vectors[i], chunk: chunks[i]})
	}

	logging.FromContext(ctx).Debug("index: vectors added",
		slog.Int("added", len(vectors)),
		slog.Int("total", len(ix.entries)),
	)
	return nil
}

// Search returns the k chunks nearest to the query vector, best first.
// Scores are 1/(1+d) where d is the squared Euclidean distance, so they
// fall in (0, 1] with 1 meaning an exact match. An empty index returns nil;
// k larger than the index size is clamped.
func (ix *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Retrieved, error) {
	if len(ix.entries) == 0 {
		logging.FromContext(ctx).Warn("index: search on empty index")
		return nil, nil
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(query), ix.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > len(ix.entries) {
		k = len(ix.entries)
	}

	type scored struct {
		idx  int
		dist float64
	}
	all := make([]scored, len(ix.entries))
	for i, e := range ix.entries {
		all[i] = scored{idx: i, dist: squaredL2(query, e.vector)}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].dist != all[b].dist {
			return all[a].dist < all[b].dist
		}
		return all[a].idx < all[b].idx
	})

	results := make([]Retrieved, 0, k)
	for _, s := range all[:k] {
		chunk := ix.entries[s.idx].chunk
		source := chunk.Source
		if source == "" {
			source = "unknown"
		}
		results = append(results, Retrieved{
			Text:    chunk.Text,
			Source:  source,
			Score:   1.0 / (1.0 + s.dist),
			ChunkID: chunk.ID,
		})
	}

	logging.FromContext(ctx).Debug("index: search complete", slog.Int("results", len(results)))
	return results, nil
}

// Size returns the number of indexed vectors.
func (ix *FlatIndex) Size() int { return len(ix.entries) }

// Dimension returns the index vector dimension, zero if empty.
func (ix *FlatIndex) Dimension() int { return ix.dimension }

// Sources returns the set of distinct chunk sources in the index.
func (ix *FlatIndex) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range ix.entries {
		if !seen[e.chunk.Source] {
			seen[e.chunk.Source] = true
			out = append(out, e.chunk.Source)
		}
	}
	sort.Strings(out)
	return out
}

// Save writes the index to dir as two artifacts: the vectors and the chunk
// metadata. The directory is created if needed.
func (ix *FlatIndex) Save(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: failed to create %s: %w", dir, err)
	}

	vectors := make([][]float32, len(ix.entries))
	chunks := make([]Chunk, len(ix.entries))
	for i, e := range ix.entries {
		vectors[i] = e.vector
		chunks[i] = e.chunk
	}

	snap := indexSnapshot{Dimension: ix.dimension, Vectors: vectors}
	if err := writeGob(filepath.Join(dir, vectorsFile), snap); err != nil {
		return fmt.Errorf("index: failed to save vectors: %w", err)
	}
	if err := writeGob(filepath.Join(dir, chunksFile), chunks); err != nil {
		return fmt.Errorf("index: failed to save chunks: %w", err)
	}

	logging.FromContext(ctx).Info("index: saved",
		slog.String("dir", dir),
		slog.Int("vectors", len(ix.entries)),
	)
	return nil
}

// Load reads an index previously written by Save. It returns true on
// success and false when the artifacts are missing or unreadable; a failed
// load never leaves the index partially populated.
func (ix *FlatIndex) Load(ctx context.Context, dir string) bool {
	log := logging.FromContext(ctx)

	vPath := filepath.Join(dir, vectorsFile)
	cPath := filepath.Join(dir, chunksFile)
	if !fileExists(vPath) || !fileExists(cPath) {
		log.Warn("index: artifacts not found", slog.String("dir", dir))
		return false
	}

	var snap indexSnapshot
	if err := readGob(vPath, &snap); err != nil {
		log.Error("index: failed to load vectors", slog.String("error", err.Error()))
		return false
	}
	var chunks []Chunk
	if err := readGob(cPath, &chunks); err != nil {
		log.Error("index: failed to load chunks", slog.String("error", err.Error()))
		return false
	}
	if len(snap.Vectors) != len(chunks) {
		log.Error("index: artifact mismatch",
			slog.Int("vectors", len(snap.Vectors)),
			slog.Int("chunks", len(chunks)),
		)
		return false
	}

	entries := make([]indexEntry, len(chunks))
	for i := range chunks {
		entries[i] = indexEntry{vector: snap.Vectors[i], chunk: chunks[i]}
	}
	ix.dimension = snap.Dimension
	ix.entries = entries

	log.Info("index: loaded",
		slog.String("dir", dir),
		slog.Int("vectors", len(ix.entries)),
		slog.Int("dimension", ix.dimension),
	)
	return true
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return err
	}
	return f.Close()
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
