// Package embedding turns function chunks and search queries into vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	voyageAPIURL = "https://api.voyageai.com/v1/embeddings"

	// MaxBatchSize is the most inputs Voyage accepts per request.
	MaxBatchSize = 128

	defaultRetries = 3
	batchWorkers   = 4
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Dimension() int
}

// APIError is a non-200 answer from the embeddings endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voyage API error (status %d): %s", e.Status, e.Body)
}

// Temporary reports whether the request may succeed when retried.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// VoyageClient calls the Voyage AI embeddings API.
type VoyageClient struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	retries int
	backoff time.Duration
	tokens  atomic.Int64
}

// NewVoyageClient creates a client for model.
func NewVoyageClient(apiKey, model string) *VoyageClient {
	return &VoyageClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: voyageAPIURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
		retries: defaultRetries,
		backoff: time.Second,
	}
}

// WithBaseURL points the client at a different endpoint.
func (c *VoyageClient) WithBaseURL(url string) *VoyageClient {
	c.baseURL = url
	return c
}

// WithRetry sets how often a rate-limited or failed request is retried and
// the delay before the first retry. The delay doubles on each attempt.
func (c *VoyageClient) WithRetry(retries int, backoff time.Duration) *VoyageClient {
	c.retries, c.backoff = retries, backoff
	return c
}

// TokensUsed is the running total of tokens billed to this client.
func (c *VoyageClient) TokensUsed() int64 {
	return c.tokens.Load()
}

type embedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Embed returns document vectors for texts, in input order.
func (c *VoyageClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.call(ctx, texts, "document")
}

// EmbedQuery returns the vector of a search query.
func (c *VoyageClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.call(ctx, []string{query}, "query")
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || vectors[0] == nil {
		return nil, errors.New("no embedding returned for query")
	}
	return vectors[0], nil
}

func (c *VoyageClient) call(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Input: texts, Model: c.model, InputType: inputType})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		vectors, err := c.post(ctx, body, len(texts))
		var apiErr *APIError
		if err == nil || attempt >= c.retries || !errors.As(err, &apiErr) || !apiErr.Temporary() {
			return vectors, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *VoyageClient) post(ctx context.Context, body []byte, n int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	var decoded embedResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	c.tokens.Add(decoded.Usage.TotalTokens)

	// The API may answer out of order.
	vectors := make([][]float32, n)
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return vectors, nil
}

// EmbedBatched splits texts into batches of at most batchSize and embeds
// them concurrently. The result keeps input order.
func EmbedBatched(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vectors, err := e.Embed(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d failed: %w", start, end, err)
			}
			if len(vectors) != end-start {
				return fmt.Errorf("batch %d-%d: got %d vectors", start, end, len(vectors))
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Dimension returns the vector size the model produces.
func (c *VoyageClient) Dimension() int {
	switch c.model {
	case "voyage-3.5-lite", "voyage-3-lite":
		return 512
	default:
		return 1024
	}
}
