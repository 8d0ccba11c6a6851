package client

import (
	"context"
	"errors"
	"sync"

	"tutorchat/pkg/models"
)

// ErrBusy is returned when a submit or clear is attempted while another
// submission is in flight. The UI disables input while streaming; this
// guards callers that race anyway.
var ErrBusy = errors.New("client: submission already in flight")

// State tracks the session through the reconciliation loop.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateStreaming
	StateResyncing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	case StateResyncing:
		return "resyncing"
	}
	return "unknown"
}

// Session drives one (user, model) conversation through the protocol's
// client loop: submit, stream, then unconditionally resync from history.
// Local accumulation is display-only; the history returned by each
// operation is the authoritative view.
type Session struct {
	client  *Client
	modelID string

	mu    sync.Mutex
	state State
}

// NewSession creates a session for the given model.
func NewSession(c *Client, modelID string) *Session {
	return &Session{client: c, modelID: modelID}
}

// State returns the current loop state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrBusy
	}
	s.state = StateSubmitting
	return nil
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
}

// Submit sends the utterance, streams events through onEvent, then
// resyncs and returns the authoritative history. The resync happens even
// when the stream fails: the server may have persisted the user turn and
// an error turn, and only history shows what actually committed.
func (s *Session) Submit(ctx context.Context, input string, onEvent func(Event)) ([]models.DisplayTurn, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.transition(StateIdle)

	streamErr := s.client.Chat(ctx, s.modelID, input, func(ev Event) {
		s.transition(StateStreaming)
		if onEvent != nil {
			onEvent(ev)
		}
	})

	s.transition(StateResyncing)
	history, histErr := s.client.History(ctx, s.modelID)
	if streamErr != nil {
		return history, streamErr
	}
	return history, histErr
}

// Clear deletes the conversation's turns and resyncs.
func (s *Session) Clear(ctx context.Context) ([]models.DisplayTurn, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.transition(StateIdle)

	if err := s.client.Clear(ctx, s.modelID); err != nil {
		return nil, err
	}
	s.transition(StateResyncing)
	return s.client.History(ctx, s.modelID)
}

// Resync fetches the authoritative history without mutating anything.
func (s *Session) Resync(ctx context.Context) ([]models.DisplayTurn, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.state = StateResyncing
	s.mu.Unlock()
	defer s.transition(StateIdle)
	return s.client.History(ctx, s.modelID)
}
