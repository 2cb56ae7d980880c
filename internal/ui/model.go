// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Polls the playback session and maps keys to host controls
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/playback"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	refreshInterval = 250 * time.Millisecond
	volumeStep      = 0.05
	rateStep        = 0.25
	barWidth        = 24
)

// Host is the playback session the TUI controls
type Host interface {
	Pause()
	Resume()
	SetVolume(volume float64) float64
	SetPlaybackRate(rate float64) float64
	Cleanup()
	Status() playback.Snapshot
}

// Model represents the TUI state
type Model struct {
	host Host

	// Connection
	connected  bool
	serverName string

	snapshot playback.Snapshot
	action   string
	quitting bool

	// Dimensions
	width  int
	height int
}

type tickMsg time.Time

// ConnMsg reports a connection change
type ConnMsg struct {
	Connected  bool
	ServerName string
}

// NewModel creates a new TUI model
func NewModel(host Host, serverName string) Model {
	return Model{
		host:       host,
		serverName: serverName,
		snapshot:   host.Status(),
	}
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.snapshot = m.host.Status()
		return m, tickEvery()
	case ConnMsg:
		m.connected = msg.Connected
		if msg.ServerName != "" {
			m.serverName = msg.ServerName
		}
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case " ", "space":
		if m.snapshot.State == playback.Paused {
			m.host.Resume()
			m.action = "Resumed"
		} else {
			m.host.Pause()
			m.action = "Paused"
		}
	case "up":
		v := m.host.SetVolume(m.snapshot.Volume + volumeStep)
		m.action = fmt.Sprintf("Volume %d%%", percent(v))
	case "down":
		v := m.host.SetVolume(m.snapshot.Volume - volumeStep)
		m.action = fmt.Sprintf("Volume %d%%", percent(v))
	case "right":
		r := m.host.SetPlaybackRate(m.snapshot.PlaybackRate + rateStep)
		m.action = fmt.Sprintf("Speed %.2fx", r)
	case "left":
		r := m.host.SetPlaybackRate(m.snapshot.PlaybackRate - rateStep)
		m.action = fmt.Sprintf("Speed %.2fx", r)
	case "c":
		m.host.Cleanup()
		m.action = "Buffer cleared"
	default:
		return m, nil
	}

	m.snapshot = m.host.Status()
	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	faintStyle = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping player...\n"
	}

	s := m.snapshot
	var b strings.Builder

	b.WriteString(titleStyle.Render("Gapless Player"))
	b.WriteString("\n\n")

	conn := "Disconnected"
	if m.connected {
		conn = "Connected to " + m.serverName
	}
	field(&b, "Feed:    ", conn)

	statusStyle := valueStyle
	if s.Status.Label == "error" {
		statusStyle = errorStyle
	}
	b.WriteString(headerStyle.Render("Status:  "))
	b.WriteString(statusStyle.Render(s.Status.Text))
	b.WriteString("\n")

	field(&b, "Buffer:  ", fmt.Sprintf("[%s] %d/%d blocks, %.1fs",
		renderBar(s.Occupancy, s.Capacity, barWidth), s.Occupancy, s.Capacity, s.BufferedSeconds))
	field(&b, "Volume:  ", fmt.Sprintf("[%s] %d%%", renderBar(percent(s.Volume), 100, barWidth), percent(s.Volume)))
	field(&b, "Speed:   ", fmt.Sprintf("%.2fx", s.PlaybackRate))
	b.WriteString("\n")

	field(&b, "Received:", fmt.Sprintf(" %s fragments (%s)", humanize.Comma(int64(s.Received)), humanize.Bytes(s.ReceivedBytes)))
	field(&b, "Played:  ", fmt.Sprintf("%s blocks (%s)", humanize.Comma(int64(s.Played)), formatSeconds(s.PlayedSeconds)))
	field(&b, "Errors:  ", fmt.Sprintf("%d dropped, %d undecodable, %d device", s.DropCount, s.DecodeErrors, s.DeviceErrors))

	if m.action != "" {
		b.WriteString("\n")
		b.WriteString(valueStyle.Render(m.action))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("space:Pause/Resume  ↑/↓:Volume  ←/→:Speed  c:Clear  q:Quit"))

	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = min(value*width/max, width)
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func percent(v float64) int {
	return int(v*100 + 0.5)
}

func formatSeconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).Round(time.Second).String()
}
