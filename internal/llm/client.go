package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrRetriesExhausted wraps the last failure after the bounded retry
// budget is spent.
var ErrRetriesExhausted = errors.New("llm: retries exhausted")

// Config holds configuration for the inference client. GenerateURL is a
// chat-completions endpoint; EmbedURL is a feature-extraction endpoint
// accepting a batch of inputs.
type Config struct {
	APIKey      string
	Model       string
	GenerateURL string
	EmbedURL    string

	Timeout time.Duration // per-attempt timeout (default: 60s)

	// MaxRetries is the number of additional attempts after the first
	// failure (default: 3). Retries back off exponentially starting
	// from RetryBackoff (default: 1s).
	MaxRetries   int
	RetryBackoff time.Duration

	// RequestsPerSecond throttles outbound calls; zero disables
	// throttling.
	RequestsPerSecond float64

	Breaker CircuitBreakerConfig
}

// Client implements TextGenerator and EmbeddingProvider against
// HTTP inference endpoints. All calls go through a rate limiter, a
// circuit breaker and a bounded retry loop, in that order; retrying is
// an explicit loop, never recursion.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *circuitBreaker
	limiter *rate.Limiter
}

// NewClient creates an inference client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.GenerateURL == "" && cfg.EmbedURL == "" {
		return nil, errors.New("llm: at least one endpoint URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.Breaker == (CircuitBreakerConfig{}) {
		cfg.Breaker = DefaultCircuitBreakerConfig()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newCircuitBreaker(cfg.Breaker),
		limiter: limiter,
	}, nil
}

// chatRequest is the request body of the chat-completions endpoint.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// chatResponse is the response body of the chat-completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// embedRequest is the request body of the feature-extraction endpoint.
type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// Generate sends the chat to the completion endpoint and returns the
// first choice's content.
func (c *Client) Generate(ctx context.Context, chat Chat) (string, error) {
	if c.cfg.GenerateURL == "" {
		return "", errors.New("llm: generation endpoint not configured")
	}
	if len(chat) == 0 {
		return "", errors.New("llm: empty chat")
	}

	result, err := c.withRetry(ctx, "generate", func() (any, error) {
		return c.generate(ctx, chat)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) generate(ctx context.Context, chat Chat) (string, error) {
	var respData chatResponse
	err := c.post(ctx, c.cfg.GenerateURL, chatRequest{Model: c.cfg.Model, Messages: chat}, &respData)
	if err != nil {
		return "", err
	}
	if len(respData.Choices) == 0 {
		return "", errors.New("llm: response contains no choices")
	}
	return respData.Choices[0].Message.Content, nil
}

// Embed extracts embeddings for the whole batch in a single request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cfg.EmbedURL == "" {
		return nil, errors.New("llm: embedding endpoint not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("llm: empty text at batch index %d", i)
		}
	}

	result, err := c.withRetry(ctx, "embed", func() (any, error) {
		return c.embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	if err := c.post(ctx, c.cfg.EmbedURL, embedRequest{Inputs: texts}, &vectors); err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("llm: got %d embeddings for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// withRetry runs the attempt through rate limiting and the circuit
// breaker, repeating up to MaxRetries extra times with exponential
// backoff. The final error wraps ErrRetriesExhausted.
func (c *Client) withRetry(ctx context.Context, op string, attempt func() (any, error)) (any, error) {
	var lastErr error
	backoff := c.cfg.RetryBackoff

	for try := 0; try <= c.cfg.MaxRetries; try++ {
		if try > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.breaker.execute(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Retrying against an open circuit or a dead context only burns
		// the backoff budget.
		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrRetriesExhausted, op, lastErr)
}

// post sends a JSON body and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("llm: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llm: endpoint returned status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: decode response: %w", err)
	}
	return nil
}

// BreakerState exposes the circuit state for logging and tests.
func (c *Client) BreakerState() string {
	return c.breaker.state()
}
