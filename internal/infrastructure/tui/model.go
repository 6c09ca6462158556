// Package tui is a terminal chat client for the course assistant.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

// ChatPort is the TUI-facing subset of the query use case.
type ChatPort interface {
	Query(ctx context.Context, req *entities.ChatRequest) (*entities.ChatResponse, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type turn struct {
	question string
	answer   string
	sources  []entities.Source
	err      error
}

type answerMsg struct {
	resp *entities.ChatResponse
	err  error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx       context.Context
	service   ChatPort
	input     textinput.Model
	viewport  viewport.Model
	turns     []turn
	sessionID string
	header    string
	status    string
	busy      bool
	ready     bool
}

// New creates a chat model. header is shown under the title, e.g. the course count.
func New(ctx context.Context, service ChatPort, header string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the courses, /new for a fresh conversation"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		header:   header,
		status:   "Ready.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header lines, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		last := &m.turns[len(m.turns)-1]
		if msg.err != nil {
			last.err = msg.err
			m.status = "Error: " + msg.err.Error()
		} else {
			last.answer = msg.resp.Answer
			last.sources = msg.resp.Sources
			m.sessionID = msg.resp.SessionID
			m.status = fmt.Sprintf("%d sources", len(msg.resp.Sources))
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			if q == "/new" {
				return m, m.reset()
			}
			m.turns = append(m.turns, turn{question: q})
			m.busy = true
			m.status = "Thinking..."
			m.refresh()
			return m, m.ask(q)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) reset() tea.Cmd {
	id := m.sessionID
	m.sessionID = ""
	m.turns = nil
	m.status = "New conversation."
	m.refresh()
	if id == "" {
		return nil
	}
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		service.ClearSession(ctx, id)
		return nil
	}
}

func (m Model) ask(q string) tea.Cmd {
	req := &entities.ChatRequest{Query: q, SessionID: m.sessionID}
	return func() tea.Msg {
		resp, err := m.service.Query(m.ctx, req)
		return answerMsg{resp: resp, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := lipgloss.NewStyle().Bold(true).Render("Course Materials Assistant")
	header := dimStyle.Render(m.header)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return title + "\n" + header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var sb strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(questionStyle.Render("You: " + t.question))
		sb.WriteString("\n")
		switch {
		case t.err != nil:
			sb.WriteString(errorStyle.Render("Error: " + t.err.Error()))
		case t.answer == "":
			sb.WriteString(dimStyle.Render("..."))
		default:
			sb.WriteString(t.answer)
			for _, s := range t.sources {
				sb.WriteString("\n")
				sb.WriteString(dimStyle.Render("  - " + formatSource(s)))
			}
		}
	}
	return sb.String()
}

func formatSource(s entities.Source) string {
	if s.URL == nil {
		return s.Text
	}
	return s.Text + " (" + *s.URL + ")"
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	dimStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
