package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/embed"
	"github.com/Aman-CERP/docsearch/internal/store"
)

func newFixedDimEmbedder(t *testing.T, dim int) *embed.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([][]float32, len(req.Input))
		for i := range req.Input {
			out[i] = make([]float32, dim)
		}
		_ = json.NewEncoder(w).Encode(struct {
			Embeddings [][]float32 `json:"embeddings"`
		}{Embeddings: out})
	}))
	t.Cleanup(srv.Close)
	return embed.New(srv.URL, "test-model", dim)
}

func writeMarkdownFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIndexer_Run_ChunksEmbedsAndUpserts(t *testing.T) {
	sourceDir := t.TempDir()
	writeMarkdownFile(t, sourceDir, "a.md", "<!-- Source: https://x/a -->\n# A\n\n## Install\n\nDo the install steps.")
	writeMarkdownFile(t, sourceDir, "b.md", "<!-- Source: https://x/b -->\n# B\n\n## Usage\n\nDo the usage steps.")

	dbPath := filepath.Join(t.TempDir(), "docs.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	col := s.Collection("guide", 4)

	embedder := newFixedDimEmbedder(t, 4)
	idx := New(col, embedder, nil)

	result, err := idx.Run(context.Background(), sourceDir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 0, result.FilesFailed)
	// Each file yields its H1 intro chunk plus its H2 section chunk.
	assert.Equal(t, 4, result.ChunksIndexed)
	assert.Equal(t, 4, result.TotalDocuments)
}

func TestIndexer_Run_NoMarkdownFiles_Fails(t *testing.T) {
	sourceDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "docs.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	idx := New(s.Collection("guide", 4), newFixedDimEmbedder(t, 4), nil)
	_, err = idx.Run(context.Background(), sourceDir, false)
	require.Error(t, err)
}

func TestIndexer_Run_Twice_WithClear_IsIdempotent(t *testing.T) {
	sourceDir := t.TempDir()
	writeMarkdownFile(t, sourceDir, "a.md", "<!-- Source: https://x/a -->\n# A\n\n## Install\n\nDo the install steps.")

	dbPath := filepath.Join(t.TempDir(), "docs.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	col := s.Collection("guide", 4)
	embedder := newFixedDimEmbedder(t, 4)
	idx := New(col, embedder, nil)

	_, err = idx.Run(context.Background(), sourceDir, false)
	require.NoError(t, err)
	result, err := idx.Run(context.Background(), sourceDir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalDocuments)
}
