package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	docsmcp "github.com/Aman-CERP/docsearch/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve indexed collections over the Model Context Protocol",
		Long: `serve starts an MCP server exposing search_docs and list_collections
tools, plus the docs:// resource tree, over stdio for use by AI assistants.

--collection is accepted for parity with index/search but is not required:
every tool call carries its own collection argument, and every indexed
collection is exposed as a resource regardless of this flag.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := docsmcp.NewServer(a.store, a.embedder, a.newExpander(), a.newReranker(), cfg.Embeddings.Dimensions, a.fusionParams(), nil)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := server.RegisterResources(ctx); err != nil {
				return err
			}
			return server.Serve(ctx, cfg.Server.Transport)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "default collection hint (optional; every tool call names its own collection)")

	return cmd
}
