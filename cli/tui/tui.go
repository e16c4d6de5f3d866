package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/justapithecus/uvlens/types"
)

// refreshInterval paces source polls while the screen is up.
const refreshInterval = 100 * time.Millisecond

// Source supplies the live state the view polls on every tick.
// *session.Guard satisfies it.
type Source interface {
	Snapshot() types.Snapshot
	Downloads() []types.DownloadProgress
}

// tickMsg triggers one poll of the source.
type tickMsg time.Time

// ResultMsg delivers the final result and closes the view.
type ResultMsg struct {
	Result types.InstallResult
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
	Kill key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Kill: key.NewBinding(
		key.WithKeys("k"),
		key.WithHelp("k", "kill install"),
	),
}

// Model is the Bubble Tea model for a live install session.
type Model struct {
	source Source
	kill   func()

	snap   types.Snapshot
	rows   []types.DownloadProgress
	result *types.InstallResult

	overall progress.Model
	rowBar  progress.Model

	width    int
	killed   bool
	quitting bool
}

// NewModel creates a model polling source. kill is invoked on the k
// key and may be nil for read-only sessions.
func NewModel(source Source, kill func()) Model {
	overall := progress.New(progress.WithDefaultGradient())
	overall.Width = 40
	rowBar := progress.New(progress.WithDefaultGradient())
	rowBar.Width = 20

	return Model{
		source:  source,
		kill:    kill,
		snap:    source.Snapshot(),
		overall: overall,
		rowBar:  rowBar,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 6; w >= 20 && w <= 60 {
			m.overall.Width = w
		}
		return m, nil

	case tickMsg:
		m.snap = m.source.Snapshot()
		m.rows = m.source.Downloads()
		return m, tick()

	case ResultMsg:
		m.result = &msg.Result
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Kill):
			if m.kill != nil && !m.killed {
				m.killed = true
				m.kill()
			}
			return m, nil
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "uvlens"
	if m.snap.SessionID != "" {
		title += "  " + m.snap.SessionID
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	phase := string(m.snap.Phase)
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Phase:"),
		StateStyle(phase).Render(phase)))

	if m.snap.Message != "" {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Status:"),
			ValueStyle.Render(m.snap.Message)))
	}

	counts := m.snap.Packages
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Packages:"),
		ValueStyle.Render(fmt.Sprintf("resolved %d/%d, downloaded %d, installed %d",
			counts.Resolved, counts.Total, counts.Downloaded, counts.Installed))))

	b.WriteString("\n")
	b.WriteString(m.overall.ViewAs(m.snap.OverallProgress / 100))
	b.WriteString("\n")

	if len(m.rows) > 0 {
		b.WriteString("\n")
		for _, row := range m.rows {
			b.WriteString(m.renderRow(row))
			b.WriteString("\n")
		}
	}

	if m.snap.Error != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(m.snap.Error))
		b.WriteString("\n")
	}

	help := "Press q to quit, k to kill the install"
	if m.killed {
		help = "Kill signal sent, waiting for uv to exit"
	}
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}

// renderRow draws one package download line.
func (m Model) renderRow(row types.DownloadProgress) string {
	name := row.Package
	if len(name) > 20 {
		name = name[:17] + "..."
	}

	detail := formatSize(row.BytesReceived)
	if row.TotalBytes > 0 {
		detail += " of " + formatSize(row.TotalBytes)
	}

	switch row.Status {
	case "downloading":
		if row.Rate > 0 {
			detail += "  " + humanize.IBytes(uint64(row.Rate)) + "/s"
		}
		if row.HasETA {
			eta := time.Duration(row.ETASeconds * float64(time.Second)).Round(time.Second)
			detail += "  eta " + eta.String()
		}
	case "completed":
		detail += "  " + SuccessStyle.Render("done")
	case "failed":
		detail += "  " + ErrorStyle.Render("failed")
	}

	return fmt.Sprintf("  %-20s %s  %s", name, m.rowBar.ViewAs(row.Percent/100), detail)
}

func formatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// Program wraps a running Bubble Tea program so the caller can push
// the final result and wait for the screen to close.
type Program struct {
	p *tea.Program
}

// NewProgram builds the full-screen program for a live session.
func NewProgram(source Source, kill func()) *Program {
	return &Program{
		p: tea.NewProgram(NewModel(source, kill), tea.WithAltScreen()),
	}
}

// Run blocks until the view exits.
func (p *Program) Run() error {
	_, err := p.p.Run()
	return err
}

// Finish delivers the final result, closing the view. Safe to call
// after the view has already exited.
func (p *Program) Finish(res types.InstallResult) {
	p.p.Send(ResultMsg{Result: res})
}

// Quit closes the view without a result.
func (p *Program) Quit() {
	p.p.Quit()
}
