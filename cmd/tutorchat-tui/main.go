// Terminal client for the chat server. Streams replies live, then
// repaints from the server's history so the screen always reflects the
// persisted log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"tutorchat/pkg/client"
	"tutorchat/pkg/models"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true)
	reasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

type eventMsg client.Event
type streamDoneMsg struct {
	history []models.DisplayTurn
	err     error
}
type historyMsg struct {
	history []models.DisplayTurn
	err     error
}

type appModel struct {
	session *client.Session
	modelID string

	input textinput.Model
	view  viewport.Model
	ready bool

	history []models.DisplayTurn
	// partial and thinking accumulate as plain strings: bubbletea copies
	// the model by value on every Update, which a strings.Builder does not
	// survive.
	partial  string
	thinking string
	status   string
	events   chan client.Event
	busy     bool
}

func newAppModel(session *client.Session, modelID string) appModel {
	ti := textinput.New()
	ti.Placeholder = "Ask your tutor anything... (/clear resets, ctrl+c quits)"
	ti.Focus()
	ti.CharLimit = 8192
	return appModel{session: session, modelID: modelID, input: ti}
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadHistory())
}

func (m appModel) loadHistory() tea.Cmd {
	return func() tea.Msg {
		h, err := m.session.Resync(context.Background())
		return historyMsg{history: h, err: err}
	}
}

// submit runs the full loop in the background: stream events into the
// channel, then deliver the resynced history as the terminal message.
func (m appModel) submit(text string) tea.Cmd {
	events := m.events
	session := m.session
	return func() tea.Msg {
		history, err := session.Submit(context.Background(), text, func(ev client.Event) {
			events <- ev
		})
		close(events)
		return streamDoneMsg{history: history, err: err}
	}
}

func (m appModel) nextEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m appModel) clear() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		h, err := session.Clear(context.Background())
		return historyMsg{history: h, err: err}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-3)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - 3
		}
		m.repaint()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			if text == "/clear" {
				m.busy = true
				m.status = "clearing..."
				return m, m.clear()
			}
			m.busy = true
			m.status = "waiting for " + m.modelID
			m.partial = ""
			m.thinking = ""
			// optimistic echo; replaced by the resynced history
			m.history = append(m.history, models.DisplayTurn{Role: models.RoleUser, Content: text})
			m.events = make(chan client.Event, 64)
			m.repaint()
			return m, tea.Batch(m.submit(text), m.nextEvent())
		}

	case eventMsg:
		switch msg.Type {
		case "text":
			m.partial += msg.Content
		case "reasoning":
			m.thinking += msg.Content
		case "error":
			m.status = "stream failed; resyncing"
		case "done":
			m.status = "resyncing"
		}
		m.repaint()
		return m, m.nextEvent()

	case streamDoneMsg:
		m.busy = false
		m.partial = ""
		m.thinking = ""
		m.status = ""
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		if msg.history != nil {
			m.history = msg.history
		}
		m.repaint()
		return m, nil

	case historyMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = ""
			m.history = msg.history
		}
		m.repaint()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *appModel) repaint() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, t := range m.history {
		switch {
		case t.IsFailure:
			b.WriteString(failureStyle.Render("assistant (failed): "+t.Content) + "\n\n")
		case t.Role == models.RoleUser:
			b.WriteString(userStyle.Render("you: ") + t.Content + "\n\n")
		default:
			b.WriteString(assistantStyle.Render("tutor: ") + t.Content + "\n\n")
		}
	}
	if m.thinking != "" {
		b.WriteString(reasoningStyle.Render("thinking: "+m.thinking) + "\n\n")
	}
	if m.partial != "" {
		b.WriteString(assistantStyle.Render("tutor: ") + m.partial + "\n")
	}
	m.view.SetContent(b.String())
	m.view.GotoBottom()
}

func (m appModel) View() string {
	if !m.ready {
		return "loading..."
	}
	status := ""
	if m.status != "" {
		status = statusStyle.Render(m.status)
	}
	return m.view.View() + "\n" + status + "\n" + m.input.View()
}

func main() {
	_ = godotenv.Load(".env")
	server := flag.String("server", envOr("TUTORCHAT_SERVER", "http://127.0.0.1:8080"), "chat server base URL")
	token := flag.String("token", os.Getenv("TUTORCHAT_TOKEN"), "bearer token")
	modelID := flag.String("model", "", "model id (defaults to the first catalogue entry)")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "no token: set --token or TUTORCHAT_TOKEN")
		os.Exit(1)
	}

	c := client.New(*server, *token)
	id := *modelID
	if id == "" {
		catalog, err := c.Models(context.Background())
		if err != nil || len(catalog) == 0 {
			fmt.Fprintf(os.Stderr, "failed to load model catalogue: %v\n", err)
			os.Exit(1)
		}
		id = catalog[0].ID
	}

	p := tea.NewProgram(newAppModel(client.NewSession(c, id), id), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
