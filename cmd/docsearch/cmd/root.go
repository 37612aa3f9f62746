// Package cmd provides the CLI commands for docsearch.
package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/config"
	"github.com/Aman-CERP/docsearch/internal/embed"
	dserrors "github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/generate"
	"github.com/Aman-CERP/docsearch/internal/logging"
	"github.com/Aman-CERP/docsearch/internal/search"
	"github.com/Aman-CERP/docsearch/internal/store"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the docsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Local-first hybrid search engine over indexed markdown documentation",
		Long: `docsearch indexes local markdown documentation into a SQLite-backed
hybrid BM25 + vector index, and serves it over a CLI, direct search, and an
MCP tool/resource adapter for AI assistants.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults built in if omitted)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		logCfg := logging.DefaultConfig()
		if debugMode {
			logCfg = logging.DebugConfig()
		}
		logger, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		loggingCleanup = cleanup
		return nil
	}
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		if loggingCleanup != nil {
			loggingCleanup()
		}
		return nil
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		return err
	}
	return nil
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// app bundles the components every subcommand wires together.
type app struct {
	cfg      config.Config
	store    *store.Store
	embedder *embed.Client
}

func openApp(cfg config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, dserrors.Config("creating data directory", err)
	}
	dbPath := filepath.Join(cfg.Paths.DataDir, "docs.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	embedder := embed.New(
		cfg.Embeddings.Host,
		cfg.Embeddings.Model,
		cfg.Embeddings.Dimensions,
		embed.WithTimeout(secondsToDuration(cfg.Embeddings.TimeoutSec)),
		embed.WithQueryCacheSize(256),
	)

	return &app{cfg: cfg, store: st, embedder: embedder}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) collection(name string) *store.Collection {
	return a.store.Collection(name, a.cfg.Embeddings.Dimensions).WithFusionParams(a.fusionParams())
}

func (a *app) fusionParams() store.FusionParams {
	return store.FusionParams{
		RRFConstant:    a.cfg.Search.RRFConstant,
		SemanticWeight: a.cfg.Search.SemanticWeight,
		KeywordWeight:  a.cfg.Search.KeywordWeight,
		SectionBoost:   a.cfg.Search.SectionBoost,
	}
}

func (a *app) newExpander() *search.Expander {
	genClient := generate.New(a.cfg.Generation.Host, a.cfg.Generation.Model, secondsToDuration(a.cfg.Generation.TimeoutSec))
	return search.NewExpander(genClient, a.cfg.Search.NumVariations)
}

func (a *app) newReranker() search.Reranker {
	if !a.cfg.Rerank.Enabled {
		return &search.NoOpReranker{}
	}
	return search.NewHTTPReranker(a.cfg.Rerank.Host, secondsToDuration(a.cfg.Rerank.TimeoutSec))
}

func requireCollection(name string) error {
	if name == "" {
		return dserrors.Config("a --collection name is required", nil)
	}
	return nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
