package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/index"
)

func newIndexCmd() *cobra.Command {
	var (
		collection string
		clear      bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "index <source-dir>",
		Short: "Index markdown documentation into a collection",
		Long: `Index scans every *.md file directly under source-dir, chunks it,
embeds the chunks, and upserts them into the named collection's hybrid
search index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCollection(collection); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			idx := index.New(a.collection(collection), a.embedder, nil).
				WithChunkLimits(cfg.Search.ChunkMinChars, cfg.Search.ChunkMaxChars)
			result, err := idx.Run(cmd.Context(), args[0], clear)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"indexed %d file(s) (%d failed), %d chunk(s), %d document(s) now in collection %q\n",
				result.FilesProcessed, result.FilesFailed, result.ChunksIndexed, result.TotalDocuments, collection)

			if !watch {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching %q for changes (ctrl-C to stop)...\n", args[0])
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return idx.Watch(ctx, args[0])
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "name of the collection to index into (required)")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the collection before indexing")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-index on markdown file changes")

	return cmd
}
