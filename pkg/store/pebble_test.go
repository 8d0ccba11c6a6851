package store

import (
	"bytes"
	"context"
	"testing"

	"tutorchat/pkg/models"
)

func openTestPebble(t *testing.T) *Pebble {
	t.Helper()
	p, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebble: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestResolveBeforeCreateReturnsNotFound(t *testing.T) {
	p := openTestPebble(t)
	_, err := p.ResolveConversation(context.Background(), "u1", "m1")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateConversationIsIdempotentPerPair(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()

	c1, err := p.CreateConversation(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	c2, err := p.CreateConversation(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("CreateConversation second call: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("pair resolved to two conversations: %s vs %s", c1.ID, c2.ID)
	}

	// distinct model gets a distinct conversation
	c3, err := p.CreateConversation(ctx, "u1", "m2")
	if err != nil {
		t.Fatalf("CreateConversation other model: %v", err)
	}
	if c3.ID == c1.ID {
		t.Fatalf("different models share a conversation")
	}

	got, err := p.ResolveConversation(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("ResolveConversation: %v", err)
	}
	if got.ID != c1.ID || got.OwnerID != "u1" || got.ModelID != "m1" {
		t.Fatalf("resolved wrong conversation: %+v", got)
	}
}

func TestListTurnsPreservesAppendOrder(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	c, err := p.CreateConversation(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	contents := []string{"first", "second", "third", "fourth"}
	roles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleError}
	for i := range contents {
		if _, err := p.AppendTurn(ctx, c.ID, roles[i], contents[i]); err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
	}

	turns, err := p.ListTurns(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != len(contents) {
		t.Fatalf("expected %d turns, got %d", len(contents), len(turns))
	}
	for i, turn := range turns {
		if turn.Content != contents[i] {
			t.Fatalf("turn %d out of order: got %q want %q", i, turn.Content, contents[i])
		}
		if turn.Role != roles[i] {
			t.Fatalf("turn %d role: got %q want %q", i, turn.Role, roles[i])
		}
	}
}

func TestListTurnsExcludesRoles(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	c, _ := p.CreateConversation(ctx, "u1", "m1")
	p.AppendTurn(ctx, c.ID, models.RoleUser, "q")
	p.AppendTurn(ctx, c.ID, models.RoleError, "boom")
	p.AppendTurn(ctx, c.ID, models.RoleAssistant, "a")

	turns, err := p.ListTurns(ctx, c.ID, models.RoleError)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns after exclusion, got %d", len(turns))
	}
	for _, turn := range turns {
		if turn.Role == models.RoleError {
			t.Fatalf("excluded role leaked into listing")
		}
	}
}

func TestDeleteTurnsIsCompleteAndIdempotent(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	c, _ := p.CreateConversation(ctx, "u1", "m1")
	other, _ := p.CreateConversation(ctx, "u2", "m1")
	p.AppendTurn(ctx, c.ID, models.RoleUser, "q")
	p.AppendTurn(ctx, c.ID, models.RoleAssistant, "a")
	p.AppendTurn(ctx, other.ID, models.RoleUser, "keep me")

	if err := p.DeleteTurns(ctx, c.ID); err != nil {
		t.Fatalf("DeleteTurns: %v", err)
	}
	turns, _ := p.ListTurns(ctx, c.ID)
	if len(turns) != 0 {
		t.Fatalf("expected empty log after delete, got %d turns", len(turns))
	}

	// conversation row survives a clear
	if _, err := p.ResolveConversation(ctx, "u1", "m1"); err != nil {
		t.Fatalf("conversation row lost on clear: %v", err)
	}

	// other conversations are untouched
	kept, _ := p.ListTurns(ctx, other.ID)
	if len(kept) != 1 {
		t.Fatalf("clear leaked into other conversation")
	}

	// deleting again is a no-op
	if err := p.DeleteTurns(ctx, c.ID); err != nil {
		t.Fatalf("second DeleteTurns: %v", err)
	}
}

func TestTurnKeyOrderMatchesNumericOrder(t *testing.T) {
	ts := int64(1700000000000000000)
	// sequence counters around width boundaries, where a short pad would
	// make byte order diverge from numeric order
	seqs := []uint64{0, 1, 999999, 1000000, 1000001, 999999999999, 1 << 62}
	for i := 1; i < len(seqs); i++ {
		prev := turnKey("c1", ts, seqs[i-1])
		next := turnKey("c1", ts, seqs[i])
		if bytes.Compare(prev, next) >= 0 {
			t.Fatalf("key order inverted between seq %d and %d:\n%s\n%s",
				seqs[i-1], seqs[i], prev, next)
		}
	}
}

func TestListConversations(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	p.CreateConversation(ctx, "u1", "m1")
	p.CreateConversation(ctx, "u1", "m2")
	p.CreateConversation(ctx, "u2", "m1")

	convs, err := p.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(convs))
	}
}
