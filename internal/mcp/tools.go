package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docsearch/internal/search"
)

const maxNumResults = 20

// SearchDocsInput is the search_docs tool's input.
type SearchDocsInput struct {
	Query       string `json:"query" jsonschema:"the question or keywords to search documentation for"`
	Collection  string `json:"collection" jsonschema:"name of the indexed documentation collection to search"`
	NumResults  int    `json:"num_results,omitempty" jsonschema:"maximum number of results to return (default 5, max 20)"`
	ExpandQuery bool   `json:"expand_query,omitempty" jsonschema:"generate and fuse paraphrased query variants before ranking"`
	Rerank      bool   `json:"rerank,omitempty" jsonschema:"apply cross-encoder reranking to the candidate pool"`
}

// SearchDocsOutput is the search_docs tool's structured output.
type SearchDocsOutput struct {
	Markdown string `json:"markdown" jsonschema:"search results rendered as markdown"`
}

// ListCollectionsInput is the (empty) input for list_collections.
type ListCollectionsInput struct{}

// ListCollectionsOutput lists every indexed collection and its document count.
type ListCollectionsOutput struct {
	Collections []CollectionInfo `json:"collections"`
}

// CollectionInfo describes one indexed collection.
type CollectionInfo struct {
	Name          string `json:"name"`
	DocumentCount int    `json:"document_count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_docs",
		Description: "Hybrid semantic + keyword search over an indexed documentation collection",
	}, s.handleSearchDocs)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_collections",
		Description: "List every indexed documentation collection and how many documents (chunks) it holds",
	}, s.handleListCollections)
}

func (s *Server) handleSearchDocs(ctx context.Context, _ *mcp.CallToolRequest, input SearchDocsInput) (*mcp.CallToolResult, SearchDocsOutput, error) {
	reqID := uuid.NewString()
	logger := s.logger.With("request_id", reqID, "tool", "search_docs", "collection", input.Collection)

	if strings.TrimSpace(input.Collection) == "" {
		return nil, SearchDocsOutput{}, fmt.Errorf("collection is required")
	}
	numResults := input.NumResults
	if numResults <= 0 {
		numResults = 5
	}
	if numResults > maxNumResults {
		numResults = maxNumResults
	}

	logger.InfoContext(ctx, "search_docs request", "num_results", numResults, "expand_query", input.ExpandQuery, "rerank", input.Rerank)

	searcher := s.searcher(input.Collection)
	results, err := searcher.Search(ctx, input.Query, search.Options{
		TopK:   numResults,
		Expand: input.ExpandQuery,
		Rerank: input.Rerank,
	})
	if err != nil {
		logger.ErrorContext(ctx, "search_docs failed", "error", err)
		return nil, SearchDocsOutput{}, err
	}

	markdown := renderResultsMarkdown(input.Query, results)
	logger.InfoContext(ctx, "search_docs completed", "result_count", len(results))
	return nil, SearchDocsOutput{Markdown: markdown}, nil
}

func (s *Server) handleListCollections(ctx context.Context, _ *mcp.CallToolRequest, _ ListCollectionsInput) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	reqID := uuid.NewString()
	logger := s.logger.With("request_id", reqID, "tool", "list_collections")

	names, err := s.store.ListCollections(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "list_collections failed", "error", err)
		return nil, ListCollectionsOutput{}, err
	}
	out := ListCollectionsOutput{Collections: make([]CollectionInfo, 0, len(names))}
	for _, name := range names {
		count, err := s.store.CollectionCount(ctx, name)
		if err != nil {
			return nil, ListCollectionsOutput{}, err
		}
		out.Collections = append(out.Collections, CollectionInfo{Name: name, DocumentCount: count})
	}
	logger.InfoContext(ctx, "list_collections completed", "collection_count", len(out.Collections))
	return nil, out, nil
}
