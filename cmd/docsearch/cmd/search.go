package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		collection string
		numResults int
		noRerank   bool
		noExpand   bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a collection",
		Long:  `search runs hybrid BM25 + vector search over the named collection and prints the ranked results.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCollection(collection); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("num-results") {
				numResults = cfg.Search.DefaultTopK
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var expander *search.Expander
			if !noExpand {
				expander = a.newExpander()
			}
			searcher := search.NewSearcher(a.collection(collection), a.embedder, expander, a.newReranker(), nil)

			results, err := searcher.Search(cmd.Context(), args[0], search.Options{
				TopK:   numResults,
				Expand: !noExpand,
				Rerank: !noRerank,
			})
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no results for %q in collection %q\n", args[0], collection)
				return nil
			}

			out := cmd.OutOrStdout()
			for i, r := range results {
				title := r.Metadata.PageTitle
				if title == "" {
					title = r.SourceURL
				}
				fmt.Fprintf(out, "%d. %s", i+1, bold(title))
				if r.Section != "" {
					fmt.Fprintf(out, " — %s", r.Section)
				}
				fmt.Fprintf(out, " (score %.4f)\n", r.Score)
				if verbose {
					fmt.Fprintf(out, "   source: %s\n", r.SourceURL)
					fmt.Fprintf(out, "   %s\n", truncate(r.Content, 240))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "name of the collection to search (required)")
	cmd.Flags().IntVarP(&numResults, "num-results", "n", 5, "number of results to return")
	cmd.Flags().BoolVar(&noRerank, "no-rerank", false, "skip cross-encoder reranking")
	cmd.Flags().BoolVar(&noExpand, "no-expand", false, "skip query expansion")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print matched content alongside each result")

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
