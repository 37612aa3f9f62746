package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docsearch/internal/embed"
	"github.com/Aman-CERP/docsearch/internal/store"
)

// rerankPoolCap pins the reranking candidate pool at exactly 50
// regardless of top_k: max(top_k*10, 50) is never below 50, so capping
// at 50 always lands on 50.
const rerankPoolCap = 50

func rerankPoolSize(topK int) int {
	p := topK * 10
	if p < rerankPoolCap {
		p = rerankPoolCap
	}
	if p > rerankPoolCap {
		p = rerankPoolCap
	}
	return p
}

// Options controls one Search call, mirroring the MCP/CLI surface's
// search_docs(num_results, expand_query, rerank) parameters.
type Options struct {
	TopK         int
	SemanticOnly bool
	Expand       bool
	Rerank       bool
}

// Searcher orchestrates embedding, (optional) query expansion, the
// store's per-query RRF fusion, cross-query score summation, and
// (optional) cross-encoder reranking.
type Searcher struct {
	collection *store.Collection
	embedder   *embed.Client
	expander   *Expander
	reranker   Reranker
	logger     *slog.Logger
}

// NewSearcher constructs a Searcher. expander and reranker may be nil,
// in which case expansion/reranking are treated as disabled regardless
// of what Options requests.
func NewSearcher(collection *store.Collection, embedder *embed.Client, expander *Expander, reranker Reranker, logger *slog.Logger) *Searcher {
	if reranker == nil {
		reranker = &NoOpReranker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{collection: collection, embedder: embedder, expander: expander, reranker: reranker, logger: logger}
}

// Search answers one query: query -> (optional) expansion ->
// per-variant embed+store.search -> cross-query fusion -> (optional)
// rerank -> top_k. An empty query returns an empty result list, never
// an error.
func (s *Searcher) Search(ctx context.Context, queryText string, opts Options) ([]store.SearchResult, error) {
	if queryText == "" || opts.TopK <= 0 {
		return nil, nil
	}
	if _, disabled := s.reranker.(*NoOpReranker); disabled {
		opts.Rerank = false
	}

	queries := []string{queryText}
	if opts.Expand && s.expander != nil {
		queries = s.expander.Expand(ctx, queryText)
	}

	var results []store.SearchResult
	var err error
	if len(queries) == 1 {
		results, err = s.searchSingle(ctx, queries[0], opts)
	} else {
		results, err = s.searchMulti(ctx, queries, opts)
	}
	if err != nil {
		return nil, err
	}

	if opts.Rerank {
		results = s.rerank(ctx, queryText, results, opts.TopK)
	}
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

func (s *Searcher) searchSingle(ctx context.Context, queryText string, opts Options) ([]store.SearchResult, error) {
	embedding, err := s.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	if opts.Rerank {
		return s.collection.SearchPool(ctx, embedding, queryText, rerankPoolSize(opts.TopK), opts.SemanticOnly)
	}
	return s.collection.Search(ctx, embedding, queryText, opts.TopK, opts.SemanticOnly)
}

// searchMulti implements cross-query fusion: run the per-query pipeline
// for each variant with pool size max(top_k*3, 20), sum each document's
// weighted RRF score over every query it appears in, and sort
// descending. Per-modality ranks are dropped (stored as nil) — they are
// no longer meaningful once summed across queries.
func (s *Searcher) searchMulti(ctx context.Context, queries []string, opts Options) ([]store.SearchResult, error) {
	poolSize := opts.TopK * 3
	if poolSize < 20 {
		poolSize = 20
	}
	if opts.Rerank {
		poolSize = rerankPoolSize(opts.TopK)
	}

	perVariant := make([][]store.SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			embedding, err := s.embedder.EmbedQuery(gctx, q)
			if err != nil {
				return err
			}
			pool, err := s.collection.SearchPool(gctx, embedding, q, poolSize, opts.SemanticOnly)
			if err != nil {
				return err
			}
			mu.Lock()
			perVariant[i] = pool
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type accum struct {
		doc   store.SearchResult
		score float64
	}
	byID := make(map[string]*accum)
	var order []string
	for _, pool := range perVariant {
		for _, hit := range pool {
			a, ok := byID[hit.ID]
			if !ok {
				a = &accum{doc: hit}
				byID[hit.ID] = a
				order = append(order, hit.ID)
			}
			a.score += hit.Score
		}
	}

	fused := make([]store.SearchResult, 0, len(order))
	for _, id := range order {
		a := byID[id]
		result := a.doc
		result.Score = a.score
		result.SemanticRank = nil
		result.KeywordRank = nil
		fused = append(fused, result)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})
	return fused, nil
}

// rerank applies the cross-encoder over candidates, falling back to the
// unreranked RRF ordering (with a warning) if the reranker reports
// unavailable or the call itself fails.
func (s *Searcher) rerank(ctx context.Context, queryText string, candidates []store.SearchResult, topK int) []store.SearchResult {
	if !s.reranker.Available(ctx) {
		s.logger.WarnContext(ctx, "reranker unavailable, falling back to RRF scores")
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		return candidates
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}

	reranked, err := s.reranker.Rerank(ctx, queryText, documents, topK)
	if err != nil {
		s.logger.WarnContext(ctx, "reranking failed, falling back to RRF scores", "error", err)
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		return candidates
	}

	out := make([]store.SearchResult, len(reranked))
	for i, r := range reranked {
		result := candidates[r.Index]
		result.Score = r.Score
		out[i] = result
	}
	return out
}
