// Package index implements the indexer driver: glob markdown files
// under a source directory, chunk them, embed in batches, and upsert
// into a collection, under an errgroup-bounded batch pipeline.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docsearch/internal/chunk"
	"github.com/Aman-CERP/docsearch/internal/embed"
	dserrors "github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/store"
)

const defaultBatchSize = 20
const defaultConcurrency = 4

// Indexer drives the file -> chunk -> embed -> upsert pipeline for one
// collection.
type Indexer struct {
	collection  *store.Collection
	embedder    *embed.Client
	logger      *slog.Logger
	batchSize   int
	concurrency int
	chunkMin    int
	chunkMax    int
}

// New constructs an Indexer targeting the given collection, chunking
// with the package's default target size range. Use WithChunkLimits to
// override it.
func New(collection *store.Collection, embedder *embed.Client, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		collection:  collection,
		embedder:    embedder,
		logger:      logger,
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
		chunkMin:    chunk.TargetMinChars,
		chunkMax:    chunk.TargetMaxChars,
	}
}

// WithChunkLimits overrides the target chunk size range and returns the
// same Indexer for chaining.
func (idx *Indexer) WithChunkLimits(minChars, maxChars int) *Indexer {
	idx.chunkMin = minChars
	idx.chunkMax = maxChars
	return idx
}

// Result summarizes one indexing run, for CLI/status reporting.
type Result struct {
	FilesProcessed int
	FilesFailed    int
	ChunksIndexed  int
	TotalDocuments int
}

// Run indexes every *.md file directly under sourceDir. When clear is
// true, the collection is wiped first. The chunker proceeds with
// best-effort defaults and never raises on a malformed file, but an
// unreadable file is still logged, skipped, and reported in the result.
func (idx *Indexer) Run(ctx context.Context, sourceDir string, clear bool) (Result, error) {
	if clear {
		if err := idx.collection.Clear(ctx); err != nil {
			return Result{}, err
		}
	}

	files, err := filepath.Glob(filepath.Join(sourceDir, "*.md"))
	if err != nil {
		return Result{}, dserrors.Config(fmt.Sprintf("globbing %q", sourceDir), err)
	}
	if len(files) == 0 {
		return Result{}, dserrors.Config(fmt.Sprintf("no markdown files found in %q", sourceDir), nil).
			WithSuggestion("fetch or place .md files in this directory before indexing")
	}

	var allChunks []chunk.Chunk
	var failed int
	for _, path := range files {
		chunks, err := idx.chunkFile(path)
		if err != nil {
			idx.logger.WarnContext(ctx, "failed to chunk file", "file", path, "error", err)
			failed++
			continue
		}
		allChunks = append(allChunks, chunks...)
		idx.logger.InfoContext(ctx, "chunked file", "file", filepath.Base(path), "chunks", len(chunks))
	}
	if len(allChunks) == 0 {
		return Result{}, dserrors.Data(fmt.Sprintf("no chunks generated from %q", sourceDir), nil)
	}

	embeddings, err := idx.embedBatched(ctx, allChunks)
	if err != nil {
		return Result{}, err
	}

	items, err := store.FromChunks(allChunks, embeddings)
	if err != nil {
		return Result{}, err
	}
	if err := idx.collection.Upsert(ctx, items); err != nil {
		return Result{}, err
	}

	total, err := idx.collection.Count(ctx)
	if err != nil {
		return Result{}, err
	}

	return Result{
		FilesProcessed: len(files) - failed,
		FilesFailed:    failed,
		ChunksIndexed:  len(allChunks),
		TotalDocuments: total,
	}, nil
}

func (idx *Indexer) chunkFile(path string) ([]chunk.Chunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, dserrors.Data(fmt.Sprintf("reading %q", path), err)
	}
	return chunk.SplitWithLimits(string(raw), idx.chunkMin, idx.chunkMax), nil
}

// embedBatched embeds chunk content in fixed-size batches, running up to
// idx.concurrency batches concurrently via errgroup, and assembles the
// results back into the original chunk order.
func (idx *Indexer) embedBatched(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)

	for start := 0; start < len(chunks); start += idx.batchSize {
		start := start
		end := start + idx.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			texts := make([]string, end-start)
			for i, c := range chunks[start:end] {
				texts[i] = c.Content
			}
			vectors, err := idx.embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			copy(embeddings[start:end], vectors)
			idx.logger.InfoContext(gctx, "embedded batch", "start", start, "end", end, "total", len(chunks))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}
