package rag

import (
	"context"
	"log/slog"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// Hard safety limits for chunking, in characters. These cap memory use on
// pathological inputs regardless of configuration.
const (
	// MaxTextLength is the maximum number of characters of a document that
	// are chunked; longer documents are truncated with a warning.
	MaxTextLength = 100_000
	// MaxChunksPerDoc caps the number of chunks produced per document.
	MaxChunksPerDoc = 200
	// minDocumentLength is the minimum document length worth chunking.
	minDocumentLength = 50
)

// Default chunking parameters, tuned for mixed Hindi/English prose.
const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 50
)

// sentenceBoundaries are the markers a chunk prefers to end on, checked in
// order. The Devanagari danda comes first so Hindi sentences are never cut
// mid-clause when a Latin period happens to appear earlier.
var sentenceBoundaries = []string{"। ", ". ", "? ", "! ", "\n"}

// Chunker splits document text into overlapping passages. Offsets and
// sizes are measured in characters (runes), not bytes, so Devanagari text
// is never split inside a code point.
type Chunker struct {
	// ChunkSize is the candidate passage length in characters.
	ChunkSize int
	// ChunkOverlap is the number of trailing characters carried into the
	// next passage.
	ChunkOverlap int
}

// NewChunker returns a Chunker with the given parameters. Non-positive
// values fall back to the defaults.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Chunker{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// ChunkDocument splits a document into passages. Documents shorter than
// minDocumentLength characters produce no chunks. The scan always advances
// at least one character per iteration, so it terminates for any input,
// including overlap values at or above the chunk size.
func (c *Chunker) ChunkDocument(ctx context.Context, doc Document) []Chunk {
	log := logging.FromContext(ctx)

	text := []rune(doc.Text)
	if len(text) < minDocumentLength {
		return nil
	}

	if len(text) > MaxTextLength {
		log.Warn("chunker: trimming large document",
			slog.String("source", doc.Filename),
			slog.Int("chars", len(text)),
			slog.Int("limit", MaxTextLength),
		)
		text = text[:MaxTextLength]
	}

	var chunks []Chunk
	start := 0
	chunkID := 0

	for start < len(text) && chunkID < MaxChunksPerDoc {
		end := start + c.ChunkSize

		if end < len(text) {
			for _, boundary := range sentenceBoundaries {
				if pos := rfind(text, []rune(boundary), start, end); pos != -1 {
					end = pos + 1
					break
				}
			}
		}

		// The window end drives the next start even when it runs past the
		// text, so the final stretch advances by a full stride instead of
		// degrading to one-character steps.
		sliceEnd := min(end, len(text))
		chunkText := trimSpace(text[start:sliceEnd])
		if len(chunkText) > 0 {
			chunks = append(chunks, Chunk{
				Text:      string(chunkText),
				Source:    doc.Filename,
				ID:        chunkID,
				StartChar: start,
				EndChar:   sliceEnd,
			})
			chunkID++
		}

		start = max(end-c.ChunkOverlap, start+1)
	}

	log.Debug("chunker: document chunked",
		slog.String("source", doc.Filename),
		slog.Int("chunks", len(chunks)),
	)
	return chunks
}

// ChunkDocuments chunks a slice of documents in order. Intended for
// small corpora; larger corpora should be chunked and indexed one
// document at a time.
func (c *Chunker) ChunkDocuments(ctx context.Context, docs []Document) []Chunk {
	var all []Chunk
	for _, doc := range docs {
		all = append(all, c.ChunkDocument(ctx, doc)...)
	}
	logging.FromContext(ctx).Info("chunker: corpus chunked", slog.Int("total_chunks", len(all)))
	return all
}

// rfind returns the highest index i in [start, end-len(sub)] where sub
// occurs fully inside text[start:end], or -1 if absent.
func rfind(text, sub []rune, start, end int) int {
	if len(sub) == 0 || end > len(text) {
		return -1
	}
	for i := end - len(sub); i >= start; i-- {
		match := true
		for j := range sub {
			if text[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// trimSpace trims leading and trailing whitespace from a rune slice.
func trimSpace(rs []rune) []rune {
	lo, hi := 0, len(rs)
	for lo < hi && isSpace(rs[lo]) {
		lo++
	}
	for hi > lo && isSpace(rs[hi-1]) {
		hi--
	}
	return rs[lo:hi]
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', 0x85, 0xA0:
		return true
	}
	return false
}
