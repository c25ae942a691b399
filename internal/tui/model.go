package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dupdup/internal/progress"
)

// Model renders the progress of a scan from the events a
// progress.ChannelPrinter sends. Summary lines are kept and shown once the
// event channel is closed. Ctrl+C or q calls interrupt and quits.
type Model struct {
	title     string
	events    <-chan progress.Event
	interrupt func()
	started   time.Time
	width     int
	status    progress.Status
	summaries []string
	quitting  bool
}

type doneMsg struct{}

type eventMsg progress.Event

func NewModel(title string, events <-chan progress.Event, interrupt func()) Model {
	return Model{title: title, events: events, interrupt: interrupt, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForEvents(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		if msg.Status != nil {
			m.status = *msg.Status
		}
		if msg.Summary != "" {
			m.summaries = append(m.summaries, msg.Summary)
		}
		return m, listenForEvents(m.events)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.interrupt != nil {
				m.interrupt()
			}
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	done := make([]string, 0, len(m.summaries))
	for _, line := range m.summaries {
		done = append(done, doneStyle.Render(line))
	}
	if m.quitting {
		if len(done) == 0 {
			return ""
		}
		return strings.Join(done, "\n") + "\n"
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.status.Total > 0 {
		ratio = float64(m.status.Current) / float64(m.status.Total)
		if ratio > 1 {
			ratio = 1
		}
	}

	bar := renderBar(barWidth, ratio)
	elapsed := time.Since(m.started).Round(time.Millisecond)

	lines := []string{titleStyle.Render(m.title)}
	lines = append(lines, done...)
	lines = append(lines,
		labelStyle.Render(fmt.Sprintf("%s: %d/%d", m.status.Phase, m.status.Current, m.status.Total))+
			dimStyle.Render(fmt.Sprintf("  wasted:%s", progress.Bytes(m.status.Wasted))),
		dimStyle.Render(truncate(m.status.Path, barWidth+2)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(bar),
	)

	return strings.Join(lines, "\n")
}

func listenForEvents(events <-chan progress.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(event)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// truncate keeps the tail of a path, which is the part that changes.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width || width < 4 {
		return s
	}
	return "..." + string(r[len(r)-width+3:])
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorDigest)
	labelStyle = lipgloss.NewStyle().Foreground(ColorPath)
	barStyle   = lipgloss.NewStyle().Foreground(ColorProgress)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	doneStyle  = lipgloss.NewStyle().Foreground(ColorDone)
)
