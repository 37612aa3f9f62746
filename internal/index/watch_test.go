package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/store"
)

func TestWatch_ReindexesOnFileChange(t *testing.T) {
	sourceDir := t.TempDir()
	writeMarkdownFile(t, sourceDir, "a.md", "<!-- Source: https://x/a -->\n# A\n\n## Install\n\nOriginal content.")

	dbPath := filepath.Join(t.TempDir(), "docs.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	col := s.Collection("guide", 4)
	embedder := newFixedDimEmbedder(t, 4)
	idx := New(col, embedder, nil)

	_, err = idx.Run(context.Background(), sourceDir, false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- idx.Watch(ctx, sourceDir) }()

	time.Sleep(50 * time.Millisecond)
	writeMarkdownFile(t, sourceDir, "b.md", "<!-- Source: https://x/b -->\n# B\n\n## Usage\n\nNew content.")

	deadline := time.Now().Add(3 * time.Second)
	var count int
	for time.Now().Before(deadline) {
		count, err = col.Count(context.Background())
		require.NoError(t, err)
		if count == 4 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	assert.Equal(t, 4, count)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_IgnoresNonMarkdownFiles(t *testing.T) {
	sourceDir := t.TempDir()
	writeMarkdownFile(t, sourceDir, "a.md", "<!-- Source: https://x/a -->\n# A\n\n## Install\n\nOriginal content.")

	dbPath := filepath.Join(t.TempDir(), "docs.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	col := s.Collection("guide", 4)
	embedder := newFixedDimEmbedder(t, 4)
	idx := New(col, embedder, nil)
	_, err = idx.Run(context.Background(), sourceDir, false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- idx.Watch(ctx, sourceDir) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "notes.txt"), []byte("irrelevant"), 0o644))
	time.Sleep(700 * time.Millisecond)

	count, err := col.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	cancel()
	require.NoError(t, <-done)
}
