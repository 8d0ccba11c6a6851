package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"tutorchat/pkg/models"
)

// fakeServer mimics the chat API: it records submitted turns in memory
// and streams a scripted reply.
type fakeServer struct {
	mu       sync.Mutex
	turns    []models.DisplayTurn
	reply    string
	failMid  bool
	requests []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.requests = append(f.requests, "chat")
		f.turns = append(f.turns, models.DisplayTurn{Role: models.RoleUser, Content: req.Input})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		if f.failMid {
			fmt.Fprint(w, "data: {\"type\":\"text\",\"content\":\"par\"}\n\n")
			fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":\"inference: boom\"}\n\n")
			f.mu.Lock()
			f.turns = append(f.turns, models.DisplayTurn{Role: models.RoleAssistant, Content: "boom", IsFailure: true})
			f.mu.Unlock()
			return
		}
		fmt.Fprintf(w, "data: {\"type\":\"text\",\"content\":%q}\n\n", f.reply)
		fmt.Fprint(w, "data: {\"type\":\"done\",\"conversation_id\":\"conv-1\"}\n\n")
		f.mu.Lock()
		f.turns = append(f.turns, models.DisplayTurn{Role: models.RoleAssistant, Content: f.reply})
		f.mu.Unlock()
	})
	mux.HandleFunc("/v1/history", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, "history")
		turns := append([]models.DisplayTurn{}, f.turns...)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"messages": turns})
	})
	mux.HandleFunc("/v1/clear", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, "clear")
		f.turns = nil
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"models": models.Catalog{{ID: "m1"}}})
	})
	return mux
}

func newFake(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL, "token")
}

func TestSessionSubmitStreamsThenResyncs(t *testing.T) {
	f := &fakeServer{reply: "the answer"}
	s := NewSession(newFake(t, f), "m1")

	var streamed []Event
	history, err := s.Submit(context.Background(), "question", func(ev Event) {
		streamed = append(streamed, ev)
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(streamed) != 2 || streamed[0].Type != "text" || streamed[1].Type != "done" {
		t.Fatalf("events: %+v", streamed)
	}
	if len(history) != 2 || history[1].Content != "the answer" {
		t.Fatalf("history: %+v", history)
	}
	// the resync happened after the stream
	last := f.requests[len(f.requests)-1]
	if last != "history" {
		t.Fatalf("submit did not end with a resync: %v", f.requests)
	}
	if s.State() != StateIdle {
		t.Fatalf("state after submit: %v", s.State())
	}
}

func TestSessionResyncsEvenOnStreamFailure(t *testing.T) {
	f := &fakeServer{failMid: true}
	s := NewSession(newFake(t, f), "m1")

	history, err := s.Submit(context.Background(), "question", nil)
	// the terminal error event surfaces as a typed error, not as success
	var ce *ChatError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ChatError, got %T: %v", err, err)
	}
	if ce.Message != "inference: boom" {
		t.Fatalf("failure message: %q", ce.Message)
	}
	// history still reflects what the server persisted
	if len(history) != 2 || !history[1].IsFailure {
		t.Fatalf("history after failure: %+v", history)
	}
	last := f.requests[len(f.requests)-1]
	if last != "history" {
		t.Fatalf("failure path skipped the resync: %v", f.requests)
	}
}

func TestSessionClearResyncs(t *testing.T) {
	f := &fakeServer{reply: "r"}
	s := NewSession(newFake(t, f), "m1")
	ctx := context.Background()

	s.Submit(ctx, "q", nil)
	history, err := s.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history after clear: %+v", history)
	}
}

func TestSessionRejectsConcurrentSubmit(t *testing.T) {
	s := NewSession(New("http://unused", "t"), "m1")
	s.mu.Lock()
	s.state = StateStreaming
	s.mu.Unlock()

	if _, err := s.Submit(context.Background(), "q", nil); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := s.Clear(context.Background()); err != ErrBusy {
		t.Fatalf("expected ErrBusy for clear, got %v", err)
	}
}

func TestClientModels(t *testing.T) {
	f := &fakeServer{}
	c := newFake(t, f)
	catalog, err := c.Models(context.Background())
	if err != nil {
		t.Fatalf("Models: %v", err)
	}
	if len(catalog) != 1 || catalog[0].ID != "m1" {
		t.Fatalf("catalog: %+v", catalog)
	}
}

func TestClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unknown model"}`))
	}))
	defer srv.Close()
	c := New(srv.URL, "t")
	if _, err := c.History(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error")
	} else if got := err.Error(); got != "server returned 400: unknown model" {
		t.Fatalf("error text: %q", got)
	}
}
