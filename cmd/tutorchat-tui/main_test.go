package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"tutorchat/pkg/models"
)

// roundTrip runs one Update the way the bubbletea loop does: the model is
// passed and returned by value.
func roundTrip(t *testing.T, m appModel, msg tea.Msg) appModel {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(appModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return out
}

func TestStreamFragmentsAccumulateAcrossUpdates(t *testing.T) {
	m := newAppModel(nil, "m1")
	m = roundTrip(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m = roundTrip(t, m, eventMsg{Type: "text", Content: "Hel"})
	m = roundTrip(t, m, eventMsg{Type: "reasoning", Content: "hmm"})
	m = roundTrip(t, m, eventMsg{Type: "text", Content: "lo"})

	if m.partial != "Hello" {
		t.Fatalf("partial: got %q want %q", m.partial, "Hello")
	}
	if m.thinking != "hmm" {
		t.Fatalf("thinking: got %q", m.thinking)
	}
	if !strings.Contains(m.View(), "Hello") {
		t.Fatalf("view missing streamed text:\n%s", m.View())
	}
}

func TestStreamDoneRepaintsFromHistory(t *testing.T) {
	m := newAppModel(nil, "m1")
	m = roundTrip(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = roundTrip(t, m, eventMsg{Type: "text", Content: "partial reply"})

	m = roundTrip(t, m, streamDoneMsg{history: []models.DisplayTurn{
		{Role: models.RoleUser, Content: "question"},
		{Role: models.RoleAssistant, Content: "full reply"},
	}})

	if m.partial != "" || m.thinking != "" {
		t.Fatalf("accumulators not cleared: %q / %q", m.partial, m.thinking)
	}
	if m.busy {
		t.Fatalf("still busy after stream done")
	}
	view := m.View()
	if !strings.Contains(view, "full reply") || strings.Contains(view, "partial reply") {
		t.Fatalf("view not repainted from history:\n%s", view)
	}
}
