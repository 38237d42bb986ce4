package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/andlab/doctas/internal/bus"
	"github.com/andlab/doctas/internal/daemon"
	"github.com/andlab/doctas/internal/session"
	"github.com/andlab/doctas/internal/view"
)

// StatusSource is the daemon as seen by the watch screen.
type StatusSource interface {
	Status() (daemon.Status, error)
	Do(cmd byte, arg string) (string, error)
}

const defaultWidth = 60

type statusMsg struct {
	status daemon.Status
	err    error
}

type tickMsg time.Time

type commandMsg struct {
	reply string
	err   error
}

// WatchModel polls the daemon and renders the dictation screen. The mic,
// send, clear and dismiss controls are bound to keys.
type WatchModel struct {
	src      StatusSource
	interval time.Duration

	status daemon.Status
	loaded bool
	err    error
	notice string
	width  int
}

func NewWatchModel(src StatusSource, interval time.Duration) WatchModel {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return WatchModel{src: src, interval: interval, width: defaultWidth}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m WatchModel) fetch() tea.Cmd {
	return func() tea.Msg {
		s, err := m.src.Status()
		return statusMsg{status: s, err: err}
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m WatchModel) command(cmd byte) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.src.Do(cmd, "")
		return commandMsg{reply: reply, err: err}
	}
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = min(msg.Width, 100)
	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())
	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.loaded = true
		}
	case commandMsg:
		if msg.err != nil {
			m.notice = StyleError.Render(msg.err.Error())
		} else {
			m.notice = ""
		}
		return m, m.fetch()
	}
	return m, nil
}

func (m WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.status.View
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "t", " ":
		if m.loaded && v.MicEnabled {
			return m, m.command(bus.CmdToggle)
		}
	case "x", "enter":
		if m.loaded && v.SendEnabled {
			return m, m.command(bus.CmdSend)
		}
	case "c":
		if m.loaded && v.ClearEnabled {
			return m, m.command(bus.CmdClear)
		}
	case "d":
		if st := m.status.Session.State; st == session.Success || st == session.Error {
			return m, m.command(bus.CmdDismiss)
		}
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(StyleHeader.Render("doctas"))
	b.WriteString("\n")

	switch {
	case m.err != nil && !m.loaded:
		b.WriteString(StyleError.Render(fmt.Sprintf("Daemon not reachable: %v", m.err)))
		b.WriteString("\n")
		b.WriteString(StyleMuted.Render("Start it with: doctas serve"))
	case !m.loaded:
		b.WriteString(StyleMuted.Render("Connecting..."))
	default:
		b.WriteString(view.Render(m.status.View, m.width))
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(StyleWarning.Render("Connection lost, showing last state"))
		}
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(m.notice)
	}
	b.WriteString("\n\n")
	b.WriteString(StyleSubtle.Render("q quit"))
	return b.String()
}

// RunWatch shows the watch screen until the user quits.
func RunWatch(src StatusSource, interval time.Duration) error {
	_, err := tea.NewProgram(NewWatchModel(src, interval), tea.WithAltScreen()).Run()
	return err
}
