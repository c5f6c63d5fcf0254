package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type tickMsg time.Time

type monitorModel struct {
	demo    *demo
	spin    spinner.Model
	current snapshot
	started time.Time
}

func newMonitorModel(d *demo) *monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	return &monitorModel{
		demo:    d,
		spin:    s,
		current: d.snapshot(),
		started: time.Now(),
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tickMsg:
		m.current = m.demo.snapshot()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *monitorModel) View() string {
	s := m.current

	var b strings.Builder
	b.WriteString(titleStyle.Render("script-bridge monitor"))
	b.WriteString("  ")
	b.WriteString(m.spin.View())
	b.WriteString(fmt.Sprintf(" up %s\n\n", time.Since(m.started).Round(time.Second)))

	row := func(label string, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)))
		b.WriteString(valueStyle.Render(value))
		b.WriteByte('\n')
	}

	row("instance", fmt.Sprintf("%d (%s)", s.Instance.ID, s.Instance.State))
	row("channels", fmt.Sprintf("%d", s.Instance.Channels))
	row("sent", fmt.Sprintf("%d", s.Channel.Sent))
	row("completed", fmt.Sprintf("%d", s.Channel.Completed))
	row("queued", fmt.Sprintf("%d", s.Channel.Queued))
	row("discarded", fmt.Sprintf("%d", s.Channel.Discarded))
	row("live refs", fmt.Sprintf("%d", s.LiveRefs))
	row("pending drops", fmt.Sprintf("%d", s.Instance.PendingDrops))

	b.WriteString(warnStyle.Render(fmt.Sprintf("  %-14s%d", "uncaught", s.Uncaught)))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("  q to quit"))
	b.WriteByte('\n')

	return b.String()
}

func runMonitor(workers int, interval time.Duration) error {
	d := startDemo(workers, interval)
	defer d.shutdown()

	p := tea.NewProgram(newMonitorModel(d), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
