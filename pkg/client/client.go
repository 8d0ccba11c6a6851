// Package client is the Go client for the chat server. It implements the
// reconciliation loop the protocol requires: after every submit, clear or
// stream failure the caller resyncs from history, which is the sole
// source of truth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tutorchat/pkg/models"
)

// Client talks to a chat server over its /v1 API.
type Client struct {
	baseURL string
	token   string
	// jsonClient bounds plain request/response calls; streamClient carries
	// no timeout because SSE responses stay open.
	jsonClient   *http.Client
	streamClient *http.Client
}

// New creates a client for the given server base URL and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:      baseURL,
		token:        token,
		jsonClient:   &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

// apiError decodes the server's {"error": ...} body into an error.
func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// Models fetches the server's model catalogue.
func (c *Client) Models(ctx context.Context) (models.Catalog, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out struct {
		Models models.Catalog `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// History fetches the persisted turn sequence for the given model.
func (c *Client) History(ctx context.Context, modelID string) ([]models.DisplayTurn, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/history", map[string]string{"model_id": modelID})
	if err != nil {
		return nil, err
	}
	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out struct {
		Messages []models.DisplayTurn `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Clear deletes the conversation's turns for the given model.
func (c *Client) Clear(ctx context.Context, modelID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/clear", map[string]string{"model_id": modelID})
	if err != nil {
		return err
	}
	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// Event is one streamed payload from /v1/chat. Type is "text",
// "reasoning", "done" or "error".
type Event struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ChatError is a terminal "error" event: the stream ended in failure and
// the server has already persisted the failed turn, so the next resync
// shows it.
type ChatError struct {
	Message string
}

func (e *ChatError) Error() string {
	return "chat stream failed: " + e.Message
}

// Chat submits an utterance and delivers events through onEvent as they
// arrive. A non-2xx response before the stream opens is returned as an
// error; a mid-stream failure is delivered as a terminal "error" event
// and returned as a *ChatError.
func (c *Client) Chat(ctx context.Context, modelID, input string, onEvent func(Event)) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/chat", map[string]string{
		"model_id": modelID,
		"input":    input,
	})
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	reader := newSSEReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		data, err := reader.ReadEvent()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		var ev Event
		if json.Unmarshal(data, &ev) != nil {
			continue
		}
		if onEvent != nil {
			onEvent(ev)
		}
		if ev.Type == "error" {
			return &ChatError{Message: ev.Error}
		}
		if ev.Type == "done" {
			return nil
		}
	}
}
