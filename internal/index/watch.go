package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	dserrors "github.com/Aman-CERP/docsearch/internal/errors"
)

const watchDebounce = 500 * time.Millisecond

// Watch re-runs Run against sourceDir whenever a markdown file under it is
// created, written, or removed, debouncing bursts of events (e.g. an
// editor's save-then-rename) into a single re-index pass. It blocks until
// ctx is canceled.
//
// This is an opt-in convenience for local editing workflows; Run itself
// remains the one-shot indexing operation, which Watch simply calls
// repeatedly.
func (idx *Indexer) Watch(ctx context.Context, sourceDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return dserrors.Infra("creating filesystem watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(sourceDir); err != nil {
		return dserrors.Config("watching source directory", err)
	}

	idx.logger.InfoContext(ctx, "watching for changes", "dir", sourceDir)

	var timer *time.Timer
	trigger := make(chan struct{}, 1)
	resetTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
				continue
			}
			resetTimer()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			idx.logger.WarnContext(ctx, "watcher error", "error", err)
		case <-trigger:
			if _, err := idx.Run(ctx, sourceDir, false); err != nil {
				idx.logger.ErrorContext(ctx, "re-index failed", "error", err)
				continue
			}
			idx.logger.InfoContext(ctx, "re-indexed after change", slog.String("dir", sourceDir))
		}
	}
}
