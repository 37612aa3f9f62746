// Package embed implements the embedding client: embed(texts[]) ->
// float[][] and embed_query(text) -> float[], backed by an
// Ollama-compatible /api/embed endpoint. Bounded-timeout context, JSON
// request/response, batched calls.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	dserrors "github.com/Aman-CERP/docsearch/internal/errors"
)

// Client embeds text via a local Ollama-compatible inference daemon.
type Client struct {
	host       string
	model      string
	dimensions int
	timeout    time.Duration
	httpClient *http.Client
	queryCache *lru.Cache[string, []float32]
}

// Option configures a Client using the functional-options pattern.
type Option func(*Client)

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithQueryCacheSize bounds the LRU cache used for repeated embed_query
// calls; 0 disables caching entirely.
func WithQueryCacheSize(size int) Option {
	return func(c *Client) {
		if size <= 0 {
			c.queryCache = nil
			return
		}
		cache, err := lru.New[string, []float32](size)
		if err == nil {
			c.queryCache = cache
		}
	}
}

// New constructs a Client against an Ollama-compatible host serving the
// given model at the given fixed dimension D — every vector in a
// collection shares dimension D.
func New(host, model string, dimensions int, opts ...Option) *Client {
	c := &Client{
		host:       host,
		model:      model,
		dimensions: dimensions,
		timeout:    60 * time.Second,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dimensions reports the fixed embedding length this client produces.
func (c *Client) Dimensions() int { return c.dimensions }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector of length D per input text, in order. An empty
// input yields an empty, non-nil result.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, dserrors.Data("marshaling embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, dserrors.Infra("building embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dserrors.Infra(fmt.Sprintf("embedding endpoint %q unreachable", c.host), err).
			WithSuggestion("check that the embedding model host is running")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, dserrors.Infra(fmt.Sprintf("embedding endpoint returned %d: %s", resp.StatusCode, payload), nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, dserrors.Infra("decoding embed response", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, dserrors.Infra(
			fmt.Sprintf("embedding endpoint returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts)), nil)
	}
	for _, vec := range parsed.Embeddings {
		if len(vec) != c.dimensions {
			return nil, &DimensionMismatchError{Expected: c.dimensions, Got: len(vec)}
		}
	}
	return parsed.Embeddings, nil
}

// EmbedQuery embeds a single query string, serving repeated identical
// queries from an LRU cache when one is configured. Cache presence or
// absence never changes the embedding a query maps to.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if c.queryCache != nil {
		if cached, ok := c.queryCache.Get(text); ok {
			return cached, nil
		}
	}
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	vec := vectors[0]
	if c.queryCache != nil {
		c.queryCache.Add(text, vec)
	}
	return vec, nil
}

// DimensionMismatchError is returned when the embedding endpoint produces
// a vector whose length disagrees with the client's declared dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding client: expected dimension %d, got %d", e.Expected, e.Got)
}
