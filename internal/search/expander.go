// Package search implements the hybrid searcher, query expander, and
// reranker: orchestrating the store's per-query RRF fusion across
// (optionally expanded) query variants, and an optional cross-encoder
// second pass.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Aman-CERP/docsearch/internal/generate"
)

const expandPromptTemplate = `Rewrite the following search query as %d alternative phrasings that preserve its meaning. Reply with exactly one alternative per line, no numbering, no commentary.

Query: %s`

var expansionMetaPrefixes = []string{"here", "alternative", "variation", "query"}

// Expander turns a query into itself plus up to num_variations LLM-
// generated paraphrases. It never fails the caller: any generation
// error degrades to returning just the original query.
type Expander struct {
	client        *generate.Client
	numVariations int
	temperature   float64
	topP          float64
	numPredict    int
}

// NewExpander constructs an Expander. numVariations is the number of
// paraphrases to generate per query (the config default is 3); zero or
// less disables expansion.
func NewExpander(client *generate.Client, numVariations int) *Expander {
	return &Expander{
		client:        client,
		numVariations: numVariations,
		temperature:   0.7,
		topP:          0.9,
		numPredict:    100,
	}
}

// Expand returns [query, variant1, ...] with len <= 1+numVariations,
// always starting with the original query unchanged.
func (e *Expander) Expand(ctx context.Context, query string) []string {
	result := []string{query}
	if e.client == nil || e.numVariations <= 0 {
		return result
	}

	prompt := fmt.Sprintf(expandPromptTemplate, e.numVariations, query)
	response, err := e.client.Generate(ctx, prompt, generate.Options{
		Temperature: e.temperature,
		TopP:        e.topP,
		NumPredict:  e.numPredict,
	})
	if err != nil {
		return result
	}

	variants := parseVariants(response, query, e.numVariations)
	return append(result, variants...)
}

func parseVariants(response, original string, limit int) []string {
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(original)): {}}
	var variants []string

	for _, line := range strings.Split(response, "\n") {
		v := cleanVariantLine(line)
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		if isMetaLine(lower) {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		variants = append(variants, v)
		if len(variants) >= limit {
			break
		}
	}
	return variants
}

func cleanVariantLine(line string) string {
	v := strings.TrimSpace(line)
	v = strings.TrimLeft(v, "-*• \t")
	v = strings.TrimSpace(v)

	// Strip a leading "1." / "1)" numbering marker, if present.
	if dot := strings.IndexAny(v, ".)"); dot > 0 && dot <= 3 {
		if _, err := strconv.Atoi(strings.TrimSpace(v[:dot])); err == nil {
			v = strings.TrimSpace(v[dot+1:])
		}
	}

	v = strings.Trim(v, `"'`)
	return strings.TrimSpace(v)
}

func isMetaLine(lower string) bool {
	for _, prefix := range expansionMetaPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
