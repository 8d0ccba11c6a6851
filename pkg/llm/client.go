// Package llm is the client for the hosted model-inference gateway. The
// gateway speaks the OpenAI-compatible /chat/completions protocol and
// streams deltas over SSE.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tutorchat/pkg/config"
	"tutorchat/pkg/logger"
)

const defaultRequestTimeout = 60 * time.Second

// Message is one prompt entry sent to the gateway.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Fragment kinds delivered during streaming.
const (
	FragmentText      = "text"
	FragmentReasoning = "reasoning"
)

// Fragment is one incremental piece of model output.
type Fragment struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// StreamError is returned when streaming fails after partial content was
// already received. The partial text is preserved for diagnostics; it is
// never persisted as an assistant turn.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Client talks to the inference gateway.
type Client struct {
	baseURL string
	apiKey  string
	// streaming requests carry no client timeout; lifetime is bounded by
	// the caller's context.
	stream *http.Client
}

// New creates a gateway client from config.
func New(cfg config.GatewayConfig) *Client {
	timeout := defaultRequestTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		stream: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: timeout,
			},
		},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// ChatStream invokes the gateway with the assembled prompt and delivers
// fragments through onFragment as they arrive. It returns the full visible
// text on success. Cancellation of ctx aborts the request.
func (c *Client) ChatStream(ctx context.Context, model string, msgs []Message, onFragment func(Fragment)) (string, error) {
	body, err := json.Marshal(chatRequest{Model: model, Messages: msgs, Stream: true})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.stream.Do(req)
	if err != nil {
		return "", &StreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StreamError{Err: fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(b))}
	}

	text, err := consumeSSE(resp.Body, onFragment)
	if err != nil {
		logger.Warn("gateway_stream_failed", "model", model, "error", err, "partial_len", len(text))
		return "", &StreamError{Partial: text, Err: err}
	}
	logger.Info("gateway_stream_done", "model", model, "chars", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}
