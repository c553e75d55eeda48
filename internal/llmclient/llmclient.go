// Package llmclient implements the OpenRouter-compatible chat-completion
// and batch-embeddings HTTP client ExtractionService and VectorIndex's
// ingest path depend on (spec.md §4.5, §6). Grounded on the teacher's
// internal/embedding/ollama.go: a raw net/http POST + json.Decode
// engine behind a small typed interface, rather than a provider SDK —
// the external provider here speaks an OpenAI-compatible REST API, not
// Ollama's local-server protocol or the teacher's google.golang.org/genai
// client, so the wire types differ but the client shape (marshal
// request, timed POST, decode response, wrap errors) is the same.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/errs"
	"go.uber.org/zap"
)

// DefaultMaxRetries matches config.LLMConfig's default (spec.md §6).
const DefaultMaxRetries = 3

// Client calls an OpenRouter-compatible chat-completions and embeddings
// API with retry/backoff on 429 (honoring Retry-After) and 5xx.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	httpClient     *http.Client
	maxRetries     int
	log            *zap.SugaredLogger
}

// Option configures a Client at construction.
type Option func(*Client)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithHTTPClient overrides the default http.Client (built with New's
// timeout, 60s when none is given), e.g. for
// tests that wire a mock RoundTripper.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New constructs a Client. baseURL, apiKey, and model are required;
// embeddingModel may be empty if the caller never calls Embed/EmbedBatch.
func New(baseURL, apiKey, model, embeddingModel string, timeout time.Duration, log *zap.SugaredLogger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:        baseURL,
		apiKey:         apiKey,
		model:          model,
		embeddingModel: embeddingModel,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     DefaultMaxRetries,
		log:            log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelName returns the configured chat model, used by health_check to
// report the llm backend as configured without spending a real call.
func (c *Client) ModelName() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatJSON sends a system+user prompt pair in JSON mode at the given
// temperature (ExtractionService uses ~0.1, spec.md §4.5) and returns
// the assistant's raw response text, markdown fences intact — stripping
// is ExtractionService's concern, not the transport's.
func (c *Client) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var result chatResponse
	if err := c.postWithRetry(ctx, "/chat/completions", reqBody, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", errs.LLMFailed(fmt.Errorf("response contained no choices"))
	}
	return result.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedBatch embeds texts in a single request, returned in input order
// (VectorIndex.embed_document consumes this directly, spec.md §4.6).
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	reqBody := embeddingRequest{Model: c.embeddingModel, Input: texts}

	var result embeddingResponse
	if err := c.postWithRetry(ctx, "/embeddings", reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, errs.LLMFailed(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data)))
	}
	out := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errs.LLMFailed(fmt.Errorf("embedding index %d out of range", d.Index))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Embed embeds a single text (a thin EmbedBatch wrapper).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// retryableStatus records a 429/5xx response so the retry loop can log
// and fall through to backoff instead of failing immediately.
type retryableStatus struct {
	status     int
	body       []byte
	retryAfter time.Duration // 0 if the response carried no Retry-After header
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, string(e.body))
}

// postWithRetry marshals payload, POSTs it to c.baseURL+path with bearer
// auth, and retries on 429 (honoring Retry-After) and 5xx up to
// c.maxRetries times with exponential backoff and jitter.
func (c *Client) postWithRetry(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errs.LLMFailed(fmt.Errorf("marshal request: %w", err))
	}

	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDuration(attempt)
			if rs, ok := lastErr.(*retryableStatus); ok && rs.retryAfter > 0 {
				wait = rs.retryAfter
			}
			if c.log != nil {
				c.log.Warnw("llmclient retrying", "path", path, "attempt", attempt, "wait", wait, "cause", lastErr)
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		status, respBody, retryAfter, err := c.doPost(ctx, path, body)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusTooManyRequests || status >= 500 {
			lastErr = &retryableStatus{status: status, body: respBody, retryAfter: retryAfter}
			continue
		}
		if status != http.StatusOK {
			return errs.LLMFailed(fmt.Errorf("status %d: %s", status, string(respBody)))
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return errs.LLMFailed(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	return errs.LLMFailed(fmt.Errorf("exhausted %d retries: %w", maxRetries, lastErr))
}

// doPost performs one HTTP POST, returning the status code, raw body,
// and any Retry-After duration the response carried (0 if absent/unparseable).
func (c *Client) doPost(ctx context.Context, path string, body []byte) (int, []byte, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, 0, errs.LLMFailed(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, 0, errs.LLMFailed(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, errs.LLMFailed(fmt.Errorf("read response: %w", err))
	}

	return resp.StatusCode, respBody, parseRetryAfter(resp.Header.Get("Retry-After")), nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// backoffDuration returns exponential backoff with jitter: base 500ms
// doubling per attempt, capped at 8s, plus up to 20% jitter so a
// thundering herd of retrying callers doesn't resynchronize.
func backoffDuration(attempt int) time.Duration {
	const base = 500 * time.Millisecond
	const cap = 8 * time.Second
	d := base << uint(attempt-1)
	if d > cap || d <= 0 {
		d = cap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}
