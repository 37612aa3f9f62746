package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	dserrors "github.com/Aman-CERP/docsearch/internal/errors"
)

// RerankResult is one reordered candidate.
type RerankResult struct {
	Index    int
	Score    float64
	Document string
}

// Reranker reranks search results using a cross-encoder model.
// Cross-encoders jointly encode query-document pairs for more accurate
// relevance scoring than bi-encoder similarity, at higher latency.
type Reranker interface {
	// Rerank scores and reorders documents by relevance to query, sorted
	// score descending. topK == 0 returns all.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available reports whether the reranker service can currently serve
	// requests; callers probe this before each attempt and fall back to
	// the unreranked results on false rather than aborting the search.
	Available(ctx context.Context) bool

	Close() error
}

// HTTPReranker calls an external cross-encoder inference daemon over
// HTTP: POST {query, documents[]} -> {scores: float[]}.
type HTTPReranker struct {
	host       string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPReranker constructs an HTTPReranker against the given host.
func NewHTTPReranker(host string, timeout time.Duration) *HTTPReranker {
	return &HTTPReranker{host: host, timeout: timeout, httpClient: &http.Client{}}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank forms (query, document) pairs; the cross-encoder's max input
// length is 512 tokens, but truncation (if any) is the remote model's
// concern, not this client's.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, dserrors.Data("marshaling rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.host+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, dserrors.Infra("building rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, dserrors.Infra(fmt.Sprintf("reranker endpoint %q unreachable", r.host), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, dserrors.Infra(fmt.Sprintf("reranker endpoint returned %d: %s", resp.StatusCode, payload), nil)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, dserrors.Infra("decoding rerank response", err)
	}
	if len(parsed.Scores) != len(documents) {
		return nil, dserrors.Infra(
			fmt.Sprintf("reranker returned %d scores for %d documents", len(parsed.Scores), len(documents)), nil)
	}

	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{Index: i, Score: parsed.Scores[i], Document: doc}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available probes the reranker's health endpoint; an unreachable or
// erroring daemon reports unavailable rather than propagating an error,
// so callers can fall back instead of failing the search outright.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.host+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close is a no-op; HTTPReranker holds no resources beyond an http.Client.
func (r *HTTPReranker) Close() error { return nil }

// NoOpReranker returns documents in their original order with decreasing
// scores. It stands for "reranking disabled": Searcher skips reranking
// when given one and keeps the RRF scores.
type NoOpReranker struct{}

func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{Index: i, Score: 1.0 - float64(i)*0.01, Document: doc}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (n *NoOpReranker) Available(_ context.Context) bool { return true }
func (n *NoOpReranker) Close() error                     { return nil }

var (
	_ Reranker = (*HTTPReranker)(nil)
	_ Reranker = (*NoOpReranker)(nil)
)
