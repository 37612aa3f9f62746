// Package store implements the persistent hybrid index: one SQLite file
// holding, per row, the document content, an FTS5 lexical entry, and a
// packed-float32 vector embedding, all three kept consistent by one
// transaction per write.
package store

import "fmt"

// Metadata is the serialized form of chunk.Metadata stored in
// metadata_json: hierarchy is collapsed to its " > "-joined string at
// this boundary; the chunker's in-memory metadata keeps the list form.
type Metadata struct {
	PageTitle string `json:"page_title"`
	Hierarchy string `json:"hierarchy"`
	HasCode   bool   `json:"has_code"`
}

// Document is one stored chunk, as persisted and as returned by read
// operations.
type Document struct {
	ID         string
	Collection string
	Content    string
	SourceURL  string
	Section    string
	Metadata   Metadata
	Embedding  []float32
}

// SearchResult is one ranked hit from Search, carrying both modalities'
// ranks (nil when the document did not appear in that modality) so callers
// can inspect how a result was found.
type SearchResult struct {
	Document
	Score        float64
	SemanticRank *int
	KeywordRank  *int
	SectionMatch bool
}

// ErrDimensionMismatch is returned when an embedding's length does not
// match the collection's declared dimension — a configuration error
// that must fail loudly rather than silently truncate or pad.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrLengthMismatch is returned when FromChunks is called with a different
// number of chunks and embeddings.
type ErrLengthMismatch struct {
	Chunks     int
	Embeddings int
}

func (e *ErrLengthMismatch) Error() string {
	return fmt.Sprintf("upsert: %d chunks but %d embeddings", e.Chunks, e.Embeddings)
}
