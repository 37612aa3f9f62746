// Package mcp exposes the search and store packages as an MCP tool/
// resource server: a thin re-exposure of internal/search and
// internal/store carrying no additional semantics, built on
// github.com/modelcontextprotocol/go-sdk.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docsearch/internal/embed"
	"github.com/Aman-CERP/docsearch/internal/search"
	"github.com/Aman-CERP/docsearch/internal/store"
)

// Server bridges MCP clients to the docsearch hybrid search engine.
type Server struct {
	mcp        *mcp.Server
	store      *store.Store
	embedder   *embed.Client
	expander   *search.Expander
	reranker   search.Reranker
	dimensions int
	fusion     store.FusionParams
	logger     *slog.Logger
}

// NewServer constructs an MCP Server. expander/reranker may be nil;
// fusion defaults to store.DefaultFusionParams() when left zero-valued.
func NewServer(st *store.Store, embedder *embed.Client, expander *search.Expander, reranker search.Reranker, dimensions int, fusion store.FusionParams, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if fusion == (store.FusionParams{}) {
		fusion = store.DefaultFusionParams()
	}
	s := &Server{
		store:      st,
		embedder:   embedder,
		expander:   expander,
		reranker:   reranker,
		dimensions: dimensions,
		fusion:     fusion,
		logger:     logger,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "docsearch", Version: "0.1.0"}, nil)
	s.registerTools()
	return s
}

func (s *Server) collection(name string) *store.Collection {
	return s.store.Collection(name, s.dimensions).WithFusionParams(s.fusion)
}

func (s *Server) searcher(name string) *search.Searcher {
	return search.NewSearcher(s.collection(name), s.embedder, s.expander, s.reranker, s.logger)
}

// RegisterResources enumerates existing collections and their documents
// and registers the docs:// resource tree. Call this once after
// construction, before Serve.
func (s *Server) RegisterResources(ctx context.Context) error {
	names, err := s.store.ListCollections(ctx)
	if err != nil {
		return err
	}

	s.mcp.AddResource(&mcp.Resource{
		Name:        "collections",
		URI:         "docs://collections",
		Description: "All indexed documentation collections and their document counts",
		MIMEType:    "application/json",
	}, s.collectionsResourceHandler())

	for _, name := range names {
		if err := s.registerCollectionResources(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) registerCollectionResources(ctx context.Context, name string) error {
	s.mcp.AddResource(&mcp.Resource{
		Name:        fmt.Sprintf("%s/pages", name),
		URI:         fmt.Sprintf("docs://%s/pages", name),
		Description: fmt.Sprintf("Page index for collection %q", name),
		MIMEType:    "application/json",
	}, s.pagesResourceHandler(name))

	docs, err := s.collection(name).GetAllDocuments(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, d := range docs {
		if seen[d.SourceURL] {
			continue
		}
		seen[d.SourceURL] = true
		url := d.SourceURL
		s.mcp.AddResource(&mcp.Resource{
			Name:        url,
			URI:         fmt.Sprintf("docs://%s/page/%s", name, url),
			Description: fmt.Sprintf("Page %q in collection %q", url, name),
			MIMEType:    "text/markdown",
		}, s.pageResourceHandler(name, url))
	}
	return nil
}

// Serve starts the MCP server over the given transport ("stdio" is the
// only one currently wired).
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio":
		return s.mcp.Run(ctx, &mcp.StdioTransport{})
	default:
		return fmt.Errorf("unsupported MCP transport: %s", transport)
	}
}

// Close releases server resources. The MCP SDK server itself stops when
// its context is canceled; nothing further to release here.
func (s *Server) Close() error { return nil }
