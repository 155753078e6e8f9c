// Package rag implements the retrieval pipeline: document chunking, text
// encoding, an exact nearest-neighbor vector index with on-disk persistence,
// and context assembly for grounded question answering.
package rag

import (
	"context"
	"errors"
)

// Sentinel errors for index and pipeline operations.
var (
	// ErrDimensionMismatch reports a vector whose length differs from the
	// index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrLengthMismatch reports an Add call where the vector and chunk
	// slices have different lengths.
	ErrLengthMismatch = errors.New("vectors and chunks length mismatch")

	// ErrNoDocuments reports an index build that found no usable content.
	ErrNoDocuments = errors.New("no documents produced any chunks")
)

// Document is a loaded source document before chunking.
type Document struct {
	// Filename is the base name of the source file.
	Filename string
	// Text is the extracted plain text.
	Text string
	// PageCount is the number of pages for PDF sources, zero otherwise.
	PageCount int
	// SourcePath is the absolute path the document was loaded from.
	SourcePath string
}

// Chunk is a contiguous passage of a document, the unit of indexing
// and retrieval.
type Chunk struct {
	// Text is the passage content.
	Text string
	// Source is the filename of the originating document.
	Source string
	// ID is the zero-based position of this chunk within its document.
	ID int
	// StartChar and EndChar are the character offsets of the passage in
	// the (possibly truncated) document text.
	StartChar int
	EndChar   int
}

// Retrieved is a chunk returned by a similarity search together with
// its relevance score.
type Retrieved struct {
	// Text is the passage content.
	Text string
	// Source is the originating document filename, "unknown" if absent.
	Source string
	// Score is the similarity score in (0, 1], higher is more relevant.
	Score float64
	// ChunkID is the chunk's position within its document.
	ChunkID int
}

// Encoder converts text into fixed-dimension embedding vectors. All
// vectors produced by one Encoder have the same length.
type Encoder interface {
	// EncodeOne embeds a single text.
	EncodeOne(ctx context.Context, text string) ([]float32, error)
	// EncodeMany embeds a batch of texts, preserving order.
	EncodeMany(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the embedding vector length.
	Dimension() int
}
