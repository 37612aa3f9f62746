package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/embed"
	"github.com/Aman-CERP/docsearch/internal/store"
)

// fixedEmbedServer returns the vector for text if present in vectors,
// otherwise an all-zero vector of the configured dimension.
func fixedEmbedServer(t *testing.T, dim int, vectors map[string][]float32) *embed.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			if v, ok := vectors[text]; ok {
				out[i] = v
			} else {
				out[i] = make([]float32, dim)
			}
		}
		_ = json.NewEncoder(w).Encode(struct {
			Embeddings [][]float32 `json:"embeddings"`
		}{Embeddings: out})
	}))
	t.Cleanup(srv.Close)
	return embed.New(srv.URL, "test-model", dim)
}

func newTestCollection(t *testing.T, dim int) *store.Collection {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.Collection("docs", dim)
}

func TestSearcher_EmptyQuery_ReturnsNilNotError(t *testing.T) {
	col := newTestCollection(t, 2)
	embedder := fixedEmbedServer(t, 2, nil)
	s := NewSearcher(col, embedder, nil, nil, nil)

	results, err := s.Search(context.Background(), "", Options{TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearcher_SingleQuery_SemanticOnly(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()
	require.NoError(t, col.Upsert(ctx, []store.UpsertChunk{
		{ID: "near", Content: "closest doc", SourceURL: "https://x/a", Section: "Install", Embedding: []float32{1, 0}},
		{ID: "far", Content: "furthest doc", SourceURL: "https://x/b", Section: "Install", Embedding: []float32{0, 10}},
	}))

	embedder := fixedEmbedServer(t, 2, map[string][]float32{"query text": {1, 0}})
	s := NewSearcher(col, embedder, nil, nil, nil)

	results, err := s.Search(ctx, "query text", Options{TopK: 2, SemanticOnly: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ID)
}

func TestSearcher_MultiQuery_SumsScoresAcrossVariants(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()
	require.NoError(t, col.Upsert(ctx, []store.UpsertChunk{
		{ID: "both", Content: "appears in both queries", SourceURL: "https://x/a", Section: "Install", Embedding: []float32{1, 0}},
		{ID: "one", Content: "appears in one query", SourceURL: "https://x/b", Section: "Install", Embedding: []float32{0, 1}},
	}))

	embedder := fixedEmbedServer(t, 2, map[string][]float32{
		"original": {1, 0},
		"variant":  {1, 0},
	})
	s := NewSearcher(col, embedder, nil, nil, nil)

	results, err := s.searchMulti(ctx, []string{"original", "variant"}, Options{TopK: 2, SemanticOnly: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "both", results[0].ID)
	assert.Nil(t, results[0].SemanticRank)
}

type fakeReranker struct {
	available bool
	order     []string
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{Index: i, Document: doc, Score: float64(len(documents) - i)}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
func (f *fakeReranker) Available(_ context.Context) bool { return f.available }
func (f *fakeReranker) Close() error                     { return nil }

func TestSearcher_Rerank_OverridesScores(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()
	require.NoError(t, col.Upsert(ctx, []store.UpsertChunk{
		{ID: "a", Content: "alpha", SourceURL: "https://x/a", Section: "S", Embedding: []float32{1, 0}},
		{ID: "b", Content: "beta", SourceURL: "https://x/b", Section: "S", Embedding: []float32{0.9, 0.1}},
	}))

	embedder := fixedEmbedServer(t, 2, map[string][]float32{"q": {1, 0}})
	reranker := &fakeReranker{available: true}
	s := NewSearcher(col, embedder, nil, reranker, nil)

	results, err := s.Search(ctx, "q", Options{TopK: 2, SemanticOnly: true, Rerank: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, float64(2), results[0].Score)
}

func TestSearcher_Rerank_FallsBackWhenUnavailable(t *testing.T) {
	col := newTestCollection(t, 2)
	ctx := context.Background()
	require.NoError(t, col.Upsert(ctx, []store.UpsertChunk{
		{ID: "a", Content: "alpha", SourceURL: "https://x/a", Section: "S", Embedding: []float32{1, 0}},
	}))

	embedder := fixedEmbedServer(t, 2, map[string][]float32{"q": {1, 0}})
	reranker := &fakeReranker{available: false}
	s := NewSearcher(col, embedder, nil, reranker, nil)

	results, err := s.Search(ctx, "q", Options{TopK: 1, SemanticOnly: true, Rerank: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEqual(t, float64(1), results[0].Score) // RRF score, not the fake reranker's
}
