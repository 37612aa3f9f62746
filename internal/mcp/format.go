package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docsearch/internal/store"
)

// renderResultsMarkdown formats search hits the way a documentation
// assistant would quote them back to a model: one heading per hit with
// its source, section, and score, followed by the matched content.
func renderResultsMarkdown(query string, results []store.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s) for %q:\n\n", len(results), query)
	for i, r := range results {
		title := r.Metadata.PageTitle
		if title == "" {
			title = r.SourceURL
		}
		fmt.Fprintf(&b, "## %d. %s", i+1, title)
		if r.Section != "" {
			fmt.Fprintf(&b, " — %s", r.Section)
		}
		fmt.Fprintf(&b, "\n\n")
		fmt.Fprintf(&b, "Source: %s  \nScore: %.4f\n\n", r.SourceURL, r.Score)
		fmt.Fprintf(&b, "%s\n\n", r.Content)
	}
	return b.String()
}
