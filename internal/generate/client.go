// Package generate implements the small-model generation client
// consumed only by the query expander: generate(model, prompt,
// {temperature, top_p, num_predict}) -> {response}, against an
// Ollama-compatible /api/generate endpoint. Bounded timeout, JSON
// request/response, and an Available health probe.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dserrors "github.com/Aman-CERP/docsearch/internal/errors"
)

// Options mirrors the Ollama generation parameters.
type Options struct {
	Temperature float64
	TopP        float64
	NumPredict  int
}

// Client calls a local Ollama-compatible generation endpoint.
type Client struct {
	host       string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// New constructs a Client against the given host and model.
func New(host, model string, timeout time.Duration) *Client {
	return &Client{host: host, model: model, timeout: timeout, httpClient: &http.Client{}}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate produces text continuing prompt, bounded by opts and the
// client's configured timeout. Errors are Infrastructure-category; the
// caller (the query expander) decides how to degrade.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.NumPredict,
		},
	})
	if err != nil {
		return "", dserrors.Data("marshaling generate request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", dserrors.Infra("building generate request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dserrors.Infra(fmt.Sprintf("generation endpoint %q unreachable", c.host), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", dserrors.Infra(fmt.Sprintf("generation endpoint returned %d: %s", resp.StatusCode, payload), nil)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", dserrors.Infra("decoding generate response", err)
	}
	return parsed.Response, nil
}

// Available performs a lightweight health probe against the host's root
// path, used by callers to decide whether to attempt generation at all.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
