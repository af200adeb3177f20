package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashajkofci/attlink"
)

// linkClosedMsg is sent once the event channel is closed.
type linkClosedMsg struct{}

// model is the live attitude view.
type model struct {
	width  int
	events <-chan event

	telemetry    attlink.Triplet
	hasTelemetry bool
	target       attlink.Triplet
	hasTarget    bool

	frames   uint64
	achieved uint64
	invalid  uint64
	lastBad  byte
	closed   bool
}

func newModel(events <-chan event) model {
	return model{width: 48, events: events}
}

// listen waits for the next event from the link.
func (m model) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return linkClosedMsg{}
		}
		return ev
	}
}

func (m model) Init() tea.Cmd {
	return m.listen()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case event:
		m = m.apply(msg)
		return m, m.listen()
	case linkClosedMsg:
		m.closed = true
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) apply(ev event) model {
	if ev.invalid {
		m.invalid++
		m.lastBad = ev.header
		return m
	}
	m.frames++
	switch ev.frame.Type {
	case attlink.Telemetry:
		m.telemetry, m.hasTelemetry = ev.frame.Payload()
	case attlink.SetAttitude:
		m.target, m.hasTarget = ev.frame.Payload()
	case attlink.AttitudeAchieved:
		m.achieved++
	}
	return m
}

func (m model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Background(lipgloss.Color("63")).
		Foreground(lipgloss.Color("255")).
		Width(m.width).
		Align(lipgloss.Center)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1)

	var b strings.Builder
	fmt.Fprintf(&b, "telemetry  %s\n", tripletText(m.telemetry, m.hasTelemetry))
	fmt.Fprintf(&b, "target     %s\n", tripletText(m.target, m.hasTarget))
	fmt.Fprintf(&b, "achieved   %d\n", m.achieved)
	fmt.Fprintf(&b, "frames     %d\n", m.frames)
	fmt.Fprintf(&b, "invalid    %d", m.invalid)
	if m.invalid > 0 {
		fmt.Fprintf(&b, " (last 0x%02x)", m.lastBad)
	}

	status := "q to quit"
	if m.closed {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("link closed") + ", q to quit"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title.Render("attmon"),
		box.Render(b.String()),
		status,
	)
}

func tripletText(tr attlink.Triplet, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%6d %6d %6d", tr.X, tr.Y, tr.Z)
}
