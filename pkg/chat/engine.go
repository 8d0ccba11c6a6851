// Package chat implements the turn submission protocol: validate a user
// utterance, persist it, assemble the prompt, stream the model reply and
// persist the outcome. The message log is the sole source of truth; the
// inference call is a side-effect producer whose only persisted outcome is
// exactly one of assistant turn, error turn, or nothing.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"tutorchat/pkg/llm"
	"tutorchat/pkg/logger"
	"tutorchat/pkg/models"
	"tutorchat/pkg/store"
	"tutorchat/pkg/telemetry"
)

// SubmitState tracks one submission through the protocol.
type SubmitState int

const (
	StateIdle SubmitState = iota
	StateValidating
	StatePersistedUser
	StatePrompting
	StateStreaming
	StateFinalizing
	StateCommitted
	StateFailed
)

func (s SubmitState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StatePersistedUser:
		return "persisted_user"
	case StatePrompting:
		return "prompting"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

const defaultMaxUtteranceLen = 32 * 1024

// Inference is the model-gateway boundary consumed by the engine.
type Inference interface {
	ChatStream(ctx context.Context, model string, msgs []llm.Message, onFragment func(llm.Fragment)) (string, error)
}

// Engine orchestrates submissions, history loads and clears against the
// store and the inference gateway.
type Engine struct {
	store           store.Backend
	infer           Inference
	catalog         models.Catalog
	systemPrompt    string
	maxUtteranceLen int
	locks           *lockTable
}

// Options configures an Engine.
type Options struct {
	Store           store.Backend
	Inference       Inference
	Catalog         models.Catalog
	SystemPrompt    string
	MaxUtteranceLen int
}

// NewEngine builds the protocol engine.
func NewEngine(opts Options) *Engine {
	maxLen := opts.MaxUtteranceLen
	if maxLen <= 0 {
		maxLen = defaultMaxUtteranceLen
	}
	return &Engine{
		store:           opts.Store,
		infer:           opts.Inference,
		catalog:         opts.Catalog,
		systemPrompt:    opts.SystemPrompt,
		maxUtteranceLen: maxLen,
		locks:           newLockTable(),
	}
}

// Catalog returns the configured model set.
func (e *Engine) Catalog() models.Catalog { return e.catalog }

// SubmitRequest is one user utterance aimed at a model.
type SubmitRequest struct {
	Identity  string
	ModelID   string
	Utterance string
}

// SubmitResult reports the persisted outcome of a committed submission.
type SubmitResult struct {
	ConversationID string
	UserTurn       *models.Turn
	AssistantTurn  *models.Turn
}

// Submit runs the full protocol for one utterance. Fragments are delivered
// through onFragment while the model streams. On inference failure an error
// turn is persisted and an *InferenceError returned; callers must resync
// from history either way.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest, onFragment func(llm.Fragment)) (*SubmitResult, error) {
	state := StateValidating
	logger.Debug("submit_state", "state", state.String(), "model", req.ModelID)

	if strings.TrimSpace(req.Identity) == "" {
		return nil, &AuthorizationError{Msg: "missing identity"}
	}
	model, ok := e.catalog.Find(req.ModelID)
	if !ok {
		return nil, &ValidationError{Msg: "unknown model"}
	}
	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		return nil, &ValidationError{Msg: "empty utterance"}
	}
	if len(utterance) > e.maxUtteranceLen {
		return nil, &ValidationError{Msg: "utterance too long"}
	}

	conv, err := e.resolveOrCreate(ctx, req.Identity, req.ModelID)
	if err != nil {
		return nil, err
	}

	userTurn, err := e.store.AppendTurn(ctx, conv.ID, models.RoleUser, utterance)
	if err != nil {
		return nil, &StorageError{Op: "append user turn", Err: err}
	}
	telemetry.TurnsAppended.WithLabelValues(string(models.RoleUser)).Inc()
	state = StatePersistedUser
	logger.Debug("submit_state", "state", state.String(), "conversation", conv.ID)

	// The user turn is persisted from here on: whatever happens next, a
	// resync will show it.
	state = StatePrompting
	prompt, err := e.assemblePrompt(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	state = StateStreaming
	logger.Debug("submit_state", "state", state.String(), "conversation", conv.ID, "prompt_len", len(prompt))
	telemetry.ActiveStreams.Inc()
	start := time.Now()
	filtered := e.fragmentFilter(model, onFragment)
	sawFirst := false
	onDelivery := func(f llm.Fragment) {
		if !sawFirst {
			sawFirst = true
			telemetry.FirstFragmentSeconds.Observe(time.Since(start).Seconds())
		}
		if filtered != nil {
			filtered(f)
		}
	}
	text, inferErr := e.infer.ChatStream(ctx, model.Route(), prompt, onDelivery)
	telemetry.ActiveStreams.Dec()
	telemetry.InferenceDuration.Observe(time.Since(start).Seconds())

	state = StateFinalizing
	if inferErr != nil {
		return nil, e.finalizeFailure(ctx, conv.ID, inferErr)
	}

	res := &SubmitResult{ConversationID: conv.ID, UserTurn: userTurn}
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		assistant, err := e.store.AppendTurn(ctx, conv.ID, models.RoleAssistant, trimmed)
		if err != nil {
			return nil, &StorageError{Op: "append assistant turn", Err: err}
		}
		telemetry.TurnsAppended.WithLabelValues(string(models.RoleAssistant)).Inc()
		res.AssistantTurn = assistant
	}
	state = StateCommitted
	logger.Info("submit_committed", "conversation", conv.ID, "model", req.ModelID, "reply_chars", len(trimmed))
	return res, nil
}

// resolveOrCreate serializes lookup-before-create per (identity, model)
// pair. The lock covers only this step, never the inference call.
func (e *Engine) resolveOrCreate(ctx context.Context, identity, modelID string) (*models.Conversation, error) {
	release := e.locks.acquire(identity, modelID)
	defer release()

	conv, err := e.store.ResolveConversation(ctx, identity, modelID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, &StorageError{Op: "resolve conversation", Err: err}
	}
	conv, err = e.store.CreateConversation(ctx, identity, modelID)
	if err != nil {
		return nil, &StorageError{Op: "create conversation", Err: err}
	}
	return conv, nil
}

// assemblePrompt builds the model input: system prompt plus the ordered
// log with error turns excluded.
func (e *Engine) assemblePrompt(ctx context.Context, conversationID string) ([]llm.Message, error) {
	turns, err := e.store.ListTurns(ctx, conversationID, models.RoleError)
	if err != nil {
		return nil, &StorageError{Op: "list turns", Err: err}
	}
	msgs := make([]llm.Message, 0, len(turns)+1)
	msgs = append(msgs, llm.Message{Role: "system", Content: e.systemPrompt})
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return msgs, nil
}

// fragmentFilter suppresses reasoning fragments for models that do not
// declare the capability.
func (e *Engine) fragmentFilter(model models.ModelDescriptor, onFragment func(llm.Fragment)) func(llm.Fragment) {
	if onFragment == nil {
		return nil
	}
	if model.SupportsReasoning {
		return onFragment
	}
	return func(f llm.Fragment) {
		if f.Kind == llm.FragmentReasoning {
			return
		}
		onFragment(f)
	}
}

// finalizeFailure records the failed attempt. Caller-initiated cancellation
// is not persisted; only genuine inference failures leave an error turn.
func (e *Engine) finalizeFailure(ctx context.Context, conversationID string, inferErr error) error {
	if errors.Is(inferErr, context.Canceled) || ctx.Err() != nil {
		logger.Info("submit_canceled", "conversation", conversationID)
		return &InferenceError{Err: inferErr, Canceled: true}
	}
	telemetry.InferenceFailures.Inc()
	// Persist the failure with a background context: the request context
	// may already be unusable when the stream broke.
	recordCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.store.AppendTurn(recordCtx, conversationID, models.RoleError, inferErr.Error()); err != nil {
		logger.Error("error_turn_append_failed", "conversation", conversationID, "error", err)
	} else {
		telemetry.TurnsAppended.WithLabelValues(string(models.RoleError)).Inc()
	}
	logger.Warn("submit_failed", "conversation", conversationID, "error", inferErr)
	return &InferenceError{Err: inferErr}
}
