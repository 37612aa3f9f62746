package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) collectionsResourceHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		names, err := s.store.ListCollections(ctx)
		if err != nil {
			return nil, err
		}
		infos := make([]CollectionInfo, 0, len(names))
		for _, name := range names {
			count, err := s.store.CollectionCount(ctx, name)
			if err != nil {
				return nil, err
			}
			infos = append(infos, CollectionInfo{Name: name, DocumentCount: count})
		}
		body, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      "docs://collections",
				MIMEType: "application/json",
				Text:     string(body),
			}},
		}, nil
	}
}

func (s *Server) pagesResourceHandler(collection string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		docs, err := s.collection(collection).GetAllDocuments(ctx)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		type page struct {
			URL   string `json:"url"`
			Title string `json:"title"`
		}
		var pages []page
		for _, d := range docs {
			if seen[d.SourceURL] {
				continue
			}
			seen[d.SourceURL] = true
			pages = append(pages, page{URL: d.SourceURL, Title: d.Metadata.PageTitle})
		}
		body, err := json.MarshalIndent(pages, "", "  ")
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      fmt.Sprintf("docs://%s/pages", collection),
				MIMEType: "application/json",
				Text:     string(body),
			}},
		}, nil
	}
}

func (s *Server) pageResourceHandler(collection, sourceURL string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		docs, err := s.collection(collection).GetBySource(ctx, sourceURL)
		if err != nil {
			return nil, err
		}
		var md string
		for _, d := range docs {
			if d.Section != "" {
				md += fmt.Sprintf("## %s\n\n", d.Section)
			}
			md += d.Content + "\n\n"
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      fmt.Sprintf("docs://%s/page/%s", collection, sourceURL),
				MIMEType: "text/markdown",
				Text:     md,
			}},
		}, nil
	}
}
