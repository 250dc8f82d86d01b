// Package console is a terminal input source. It forwards key presses to
// the supervisor and shows the live window table.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/edirooss/camwall/internal/domain/window"
	"github.com/edirooss/camwall/internal/input"
	"github.com/edirooss/camwall/internal/supervisor"
	"go.uber.org/zap"
)

const refreshInterval = time.Second

// Source provides the window table.
type Source interface {
	Snapshot(ctx context.Context) ([]supervisor.WindowStatus, error)
}

type Console struct {
	log  *zap.Logger
	sink input.Sink
	src  Source
}

func New(log *zap.Logger, sink input.Sink, src Source) *Console {
	return &Console{log: log.Named("console"), sink: sink, src: src}
}

// Run owns the terminal until ctx ends or the user presses ctrl+c twice.
func (c *Console) Run(ctx context.Context) error {
	p := tea.NewProgram(newModel(ctx, c.sink, c.src), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("console: %w", err)
	}
	c.log.Info("console closed")
	return nil
}

type (
	tickMsg   time.Time
	statusMsg struct {
		windows []supervisor.WindowStatus
		err     error
	}
	sentMsg struct {
		key input.Key
		err error
	}
)

type model struct {
	ctx  context.Context
	sink input.Sink
	src  Source

	windows []supervisor.WindowStatus
	last    string // last key sent, or its error
	err     error
	width   int
	armed   bool // first ctrl+c seen
}

func newModel(ctx context.Context, sink input.Sink, src Source) *model {
	return &model{ctx: ctx, sink: sink, src: src}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) fetch() tea.Cmd {
	return func() tea.Msg {
		ws, err := m.src.Snapshot(m.ctx)
		return statusMsg{windows: ws, err: err}
	}
}

func (m *model) send(k input.Key) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{key: k, err: m.sink.Key(m.ctx, k)}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())

	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.windows = msg.windows
		}
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.last = fmt.Sprintf("%s: %v", msg.key, msg.err)
		} else {
			m.last = msg.key.String()
		}
		return m, m.fetch()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.armed {
				return m, tea.Quit
			}
			m.armed = true
			m.last = "press ctrl+c again to close the console"
			return m, nil
		}
		m.armed = false
		k, ok := keyOf(msg)
		if !ok {
			return m, nil
		}
		return m, m.send(k)
	}
	return m, nil
}

// keyOf maps a terminal key to a remote-control key.
func keyOf(msg tea.KeyMsg) (input.Key, bool) {
	switch msg.Type {
	case tea.KeyUp:
		return input.KeyUp, true
	case tea.KeyDown:
		return input.KeyDown, true
	case tea.KeyLeft:
		return input.KeyLeft, true
	case tea.KeyRight:
		return input.KeyRight, true
	case tea.KeyEnter:
		return input.KeyEnter, true
	case tea.KeyEsc, tea.KeyBackspace:
		return input.KeyEscape, true
	case tea.KeySpace:
		return input.KeySpace, true
	case tea.KeyRunes:
		if len(msg.Runes) != 1 {
			return input.KeyNone, false
		}
		k, err := input.ParseKey(string(msg.Runes))
		if err != nil {
			return input.KeyNone, false
		}
		return k, true
	}
	return input.KeyNone, false
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	statusStyles = map[window.Status]lipgloss.Style{
		window.Idle:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		window.Starting: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		window.Playing:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		window.Degraded: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		window.Failed:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

var columns = []struct {
	title string
	width int
}{
	{"WINDOW", 13},
	{"NAME", 20},
	{"STATUS", 10},
	{"RANK", 7},
	{"RESTARTS", 9},
	{"", 4},
}

func cell(s string, width int) string {
	if r := []rune(s); len(r) > width-1 {
		s = string(r[:width-1])
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("camwall"))
	b.WriteString("\n\n")

	var hdr []string
	for _, c := range columns {
		hdr = append(hdr, cell(c.title, c.width))
	}
	b.WriteString(headerStyle.Render(strings.Join(hdr, "")))
	b.WriteString("\n")

	for _, w := range m.windows {
		b.WriteString(row(w))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	if m.last != "" {
		b.WriteString("last: " + m.last + "\n")
	}
	b.WriteString(hintStyle.Render("arrows: navigate/quality  enter: fullscreen  esc: back  space: pause  0-9: window  d: display  q: quit"))
	return b.String()
}

func row(w supervisor.WindowStatus) string {
	rank := "-"
	if w.Rank > 0 {
		rank = fmt.Sprintf("%d/%d", w.Rank, w.Preferred)
		if w.Manual {
			rank += "*"
		}
	}
	flags := ""
	if w.Fullscreen {
		flags = "F"
	} else if w.Visible {
		flags = "V"
	}

	st := statusStyles[w.Status].Render(cell(w.Status.String(), columns[2].width))
	return cell(w.Key, columns[0].width) +
		cell(w.Name, columns[1].width) +
		st +
		cell(rank, columns[3].width) +
		cell(fmt.Sprint(w.Restarts), columns[4].width) +
		cell(flags, columns[5].width)
}
