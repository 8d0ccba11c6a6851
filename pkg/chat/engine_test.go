package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"tutorchat/pkg/llm"
	"tutorchat/pkg/models"
	"tutorchat/pkg/store"
)

var testCatalog = models.Catalog{
	{ID: "plain-model", DisplayName: "Plain"},
	{ID: "thinking-model", DisplayName: "Thinking", SupportsReasoning: true},
}

// fakeGateway scripts the inference boundary. Each call records the prompt
// it was handed and replays the configured fragments.
type fakeGateway struct {
	mu        sync.Mutex
	prompts   [][]llm.Message
	fragments []llm.Fragment
	reply     string
	err       error
	block     chan struct{}
}

func (f *fakeGateway) ChatStream(ctx context.Context, model string, msgs []llm.Message, onFragment func(llm.Fragment)) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, msgs)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	for _, fr := range f.fragments {
		if onFragment != nil {
			onFragment(fr)
		}
	}
	return f.reply, f.err
}

func (f *fakeGateway) lastPrompt() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

func newTestEngine(t *testing.T, gw *fakeGateway) (*Engine, store.Backend) {
	t.Helper()
	st, err := store.OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebble: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewEngine(Options{
		Store:        st,
		Inference:    gw,
		Catalog:      testCatalog,
		SystemPrompt: "You are a tutor.",
	}), st
}

func TestSubmitHappyPath(t *testing.T) {
	gw := &fakeGateway{
		fragments: []llm.Fragment{{Kind: llm.FragmentText, Content: "Hello "}, {Kind: llm.FragmentText, Content: "world"}},
		reply:     "Hello world",
	}
	e, _ := newTestEngine(t, gw)

	var streamed []string
	res, err := e.Submit(context.Background(), SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "hi"}, func(f llm.Fragment) {
		streamed = append(streamed, f.Content)
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.UserTurn == nil || res.AssistantTurn == nil {
		t.Fatalf("expected both turns persisted: %+v", res)
	}
	if len(streamed) != 2 {
		t.Fatalf("fragments not forwarded: %v", streamed)
	}

	// history shows both turns in order
	hist, err := e.History(context.Background(), "u1", "plain-model")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].Role != models.RoleUser || hist[1].Role != models.RoleAssistant {
		t.Fatalf("history after submit: %+v", hist)
	}
	if hist[1].Content != "Hello world" {
		t.Fatalf("assistant content: %q", hist[1].Content)
	}

	// prompt carried the system prompt then the user turn
	prompt := gw.lastPrompt()
	if len(prompt) != 2 || prompt[0].Role != "system" || prompt[1].Content != "hi" {
		t.Fatalf("prompt: %+v", prompt)
	}
}

func TestSubmitValidation(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{reply: "ok"})
	ctx := context.Background()

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"empty identity", SubmitRequest{Identity: " ", ModelID: "plain-model", Utterance: "x"}},
		{"unknown model", SubmitRequest{Identity: "u1", ModelID: "nope", Utterance: "x"}},
		{"empty utterance", SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "   "}},
		{"oversized utterance", SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: strings.Repeat("a", 64*1024)}},
	}
	for _, tc := range cases {
		if _, err := e.Submit(ctx, tc.req, nil); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}

	// nothing was persisted by any rejected submit
	hist, err := e.History(ctx, "u1", "plain-model")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("rejected submits must not persist turns: %+v", hist)
	}
}

func TestSubmitInferenceFailurePersistsErrorTurn(t *testing.T) {
	gw := &fakeGateway{err: errors.New("gateway exploded")}
	e, _ := newTestEngine(t, gw)
	ctx := context.Background()

	_, err := e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "hi"}, nil)
	var ie *InferenceError
	if !errors.As(err, &ie) || ie.Canceled {
		t.Fatalf("expected non-canceled InferenceError, got %v", err)
	}

	// history shows the user turn plus a failure-styled assistant turn
	hist, err := e.History(ctx, "u1", "plain-model")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 turns, got %+v", hist)
	}
	if hist[1].Role != models.RoleAssistant || !hist[1].IsFailure {
		t.Fatalf("error turn not remapped for display: %+v", hist[1])
	}

	// the next prompt must not contain the error turn
	gw.err = nil
	gw.reply = "recovered"
	if _, err := e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "again"}, nil); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	for _, m := range gw.lastPrompt() {
		if strings.Contains(m.Content, "gateway exploded") {
			t.Fatalf("error turn leaked into prompt: %+v", gw.lastPrompt())
		}
	}
}

func TestSubmitCancellationPersistsNothingAfterUserTurn(t *testing.T) {
	gw := &fakeGateway{err: context.Canceled}
	e, _ := newTestEngine(t, gw)
	ctx := context.Background()

	_, err := e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "hi"}, nil)
	var ie *InferenceError
	if !errors.As(err, &ie) || !ie.Canceled {
		t.Fatalf("expected canceled InferenceError, got %v", err)
	}

	// only the user turn survives; no error turn for a client disconnect
	hist, _ := e.History(ctx, "u1", "plain-model")
	if len(hist) != 1 || hist[0].Role != models.RoleUser {
		t.Fatalf("history after cancel: %+v", hist)
	}
}

func TestSubmitEmptyReplyPersistsNoAssistantTurn(t *testing.T) {
	gw := &fakeGateway{reply: "   \n"}
	e, _ := newTestEngine(t, gw)
	ctx := context.Background()

	res, err := e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "hi"}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.AssistantTurn != nil {
		t.Fatalf("whitespace-only reply must not persist an assistant turn")
	}
	hist, _ := e.History(ctx, "u1", "plain-model")
	if len(hist) != 1 {
		t.Fatalf("history: %+v", hist)
	}
}

func TestReasoningSuppressedForIncapableModel(t *testing.T) {
	gw := &fakeGateway{
		fragments: []llm.Fragment{
			{Kind: llm.FragmentReasoning, Content: "pondering"},
			{Kind: llm.FragmentText, Content: "answer"},
		},
		reply: "answer",
	}
	e, _ := newTestEngine(t, gw)
	ctx := context.Background()

	var kinds []string
	if _, err := e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "q"}, func(f llm.Fragment) {
		kinds = append(kinds, f.Kind)
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != llm.FragmentText {
		t.Fatalf("reasoning should be suppressed for plain-model: %v", kinds)
	}

	kinds = nil
	if _, err := e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "thinking-model", Utterance: "q"}, func(f llm.Fragment) {
		kinds = append(kinds, f.Kind)
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != llm.FragmentReasoning {
		t.Fatalf("reasoning should pass through for thinking-model: %v", kinds)
	}
}

func TestPairIsolation(t *testing.T) {
	gw := &fakeGateway{reply: "r"}
	e, _ := newTestEngine(t, gw)
	ctx := context.Background()

	e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "to plain"}, nil)
	e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "thinking-model", Utterance: "to thinking"}, nil)
	e.Submit(ctx, SubmitRequest{Identity: "u2", ModelID: "plain-model", Utterance: "other user"}, nil)

	hist, _ := e.History(ctx, "u1", "plain-model")
	if len(hist) != 2 || hist[0].Content != "to plain" {
		t.Fatalf("u1/plain history: %+v", hist)
	}
	hist, _ = e.History(ctx, "u2", "plain-model")
	if len(hist) != 2 || hist[0].Content != "other user" {
		t.Fatalf("u2/plain history: %+v", hist)
	}
}

func TestConcurrentSubmitsResolveOneConversation(t *testing.T) {
	gw := &fakeGateway{reply: "r"}
	e, st := newTestEngine(t, gw)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "go"}, nil)
			if err != nil {
				t.Errorf("Submit %d: %v", i, err)
				return
			}
			ids[i] = res.ConversationID
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent submits created multiple conversations: %v", ids)
		}
	}
	convs, err := st.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected single conversation, got %d", len(convs))
	}
}

func TestHistoryOnMissingConversation(t *testing.T) {
	e, st := newTestEngine(t, &fakeGateway{})
	ctx := context.Background()

	hist, err := e.History(ctx, "u1", "plain-model")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if hist == nil || len(hist) != 0 {
		t.Fatalf("expected empty slice, got %#v", hist)
	}
	// reads never create conversations
	convs, _ := st.ListConversations(ctx)
	if len(convs) != 0 {
		t.Fatalf("history load created a conversation")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	gw := &fakeGateway{reply: "r"}
	e, _ := newTestEngine(t, gw)
	ctx := context.Background()

	// clearing a nonexistent conversation succeeds
	if err := e.Clear(ctx, "u1", "plain-model"); err != nil {
		t.Fatalf("Clear on missing conversation: %v", err)
	}

	e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "hi"}, nil)
	if err := e.Clear(ctx, "u1", "plain-model"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	hist, _ := e.History(ctx, "u1", "plain-model")
	if len(hist) != 0 {
		t.Fatalf("history after clear: %+v", hist)
	}
	if err := e.Clear(ctx, "u1", "plain-model"); err != nil {
		t.Fatalf("second Clear: %v", err)
	}

	// the pair still resolves to the same conversation afterwards
	res, err := e.Submit(ctx, SubmitRequest{Identity: "u1", ModelID: "plain-model", Utterance: "fresh start"}, nil)
	if err != nil {
		t.Fatalf("Submit after clear: %v", err)
	}
	if res.ConversationID == "" {
		t.Fatalf("no conversation after clear")
	}
}

func TestStatusForErrorMapping(t *testing.T) {
	if got := StatusFor(&ValidationError{Msg: "x"}); got != 400 {
		t.Fatalf("validation status: %d", got)
	}
	if got := StatusFor(&AuthorizationError{Msg: "x"}); got != 401 {
		t.Fatalf("authorization status: %d", got)
	}
	if got := StatusFor(&StorageError{Op: "x", Err: errors.New("y")}); got != 500 {
		t.Fatalf("storage status: %d", got)
	}
}
