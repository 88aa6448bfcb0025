// Package tui is the interactive review screen for pending observations.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/quirk/internal/store"
)

// Reviewer applies one review decision to the store.
type Reviewer func(id string, approve bool) error

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	approvedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	deniedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// Model drives the review loop over a fixed set of pending observations.
type Model struct {
	Observations []*store.Observation
	Decide       Reviewer

	cursor   int
	decided  map[string]string
	err      error
	progress progress.Model
	viewport viewport.Model
	ready    bool
	quitting bool
	width    int
	height   int
}

// NewModel creates the review model.
func NewModel(observations []*store.Observation, decide Reviewer) Model {
	return Model{
		Observations: observations,
		Decide:       decide,
		decided:      make(map[string]string),
		progress:     progress.New(progress.WithDefaultGradient()),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "j", "down":
			if m.cursor < len(m.Observations)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "a":
			m.review(true)
		case "d":
			m.review(false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		detailHeight := msg.Height - len(m.Observations) - 8
		if detailHeight < 3 {
			detailHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, detailHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = detailHeight
		}
	}

	m.syncDetail()

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) review(approve bool) {
	if m.cursor >= len(m.Observations) {
		return
	}
	obs := m.Observations[m.cursor]
	if _, done := m.decided[obs.ID]; done {
		return
	}
	if err := m.Decide(obs.ID, approve); err != nil {
		m.err = err
		return
	}
	m.err = nil
	if approve {
		m.decided[obs.ID] = "approved"
	} else {
		m.decided[obs.ID] = "denied"
	}
	if m.cursor < len(m.Observations)-1 {
		m.cursor++
	}
}

func (m *Model) syncDetail() {
	if !m.ready || m.cursor >= len(m.Observations) {
		return
	}
	obs := m.Observations[m.cursor]
	detail := fmt.Sprintf(
		"%s\n\nCategory:    %s\nSeen:        %d times\nFirst seen:  %s\nLast seen:   %s\nTranscripts: %s",
		obs.Description,
		obs.Category,
		obs.Count,
		obs.FirstSeen.Format("2006-01-02 15:04"),
		obs.LastSeen.Format("2006-01-02 15:04"),
		strings.Join(obs.TranscriptIDs, ", "),
	)
	if len(obs.Tags) > 0 {
		detail += "\nTags:        " + strings.Join(obs.Tags, ", ")
	}
	m.viewport.SetContent(detail)
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Loading observations..."
	}
	if len(m.Observations) == 0 {
		return titleStyle.Render(" quirk review ") + "\n\n  Nothing pending.\n\n" + dimStyle.Render("  q quit")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" quirk review "))
	b.WriteString("\n\n")

	for i, obs := range m.Observations {
		line := fmt.Sprintf("%s [%s] ×%d", obs.Description, obs.Category, obs.Count)
		switch m.decided[obs.ID] {
		case "approved":
			line = approvedStyle.Render("✓ " + line)
		case "denied":
			line = deniedStyle.Render("✗ " + line)
		default:
			line = "  " + line
		}
		if i == m.cursor {
			line = cursorStyle.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")
	b.WriteString(m.progress.ViewAs(float64(len(m.decided)) / float64(len(m.Observations))))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(deniedStyle.Render(fmt.Sprintf("  error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("  j/k move · a approve · d deny · q quit"))

	if m.quitting {
		b.WriteString("\n  Done.\n")
	}
	return b.String()
}

// Decided reports how many observations got a decision.
func (m Model) Decided() int {
	return len(m.decided)
}

// Run opens the review screen and blocks until the user quits.
func Run(observations []*store.Observation, decide Reviewer) error {
	p := tea.NewProgram(NewModel(observations, decide), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
