// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the player UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the player interface
type TUI struct {
	program *tea.Program
}

// New creates the TUI for a playback session
func New(host Host, serverName string) *TUI {
	return &TUI{
		program: tea.NewProgram(NewModel(host, serverName), tea.WithAltScreen()),
	}
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// SetConnection updates the feed line
func (t *TUI) SetConnection(connected bool, serverName string) {
	t.program.Send(ConnMsg{Connected: connected, ServerName: serverName})
}

// Stop ends the program
func (t *TUI) Stop() {
	t.program.Quit()
}
