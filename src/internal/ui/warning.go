package ui

import (
	"fmt"

	"reunion-member-svc/src/internal/timeout"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StateMsg carries a dialog-state change from the coordinator into the
// bubbletea event loop.
type StateMsg timeout.DialogState

// LoggedOutMsg tells the UI the session ended and the client should return to
// the login screen.
type LoggedOutMsg struct {
	Reason string
}

var (
	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 3)

	countdownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("108"))
)

// Model renders the session status line and, when the coordinator says so,
// the timeout warning dialog.
type Model struct {
	coord *timeout.Coordinator

	state     timeout.DialogState
	loggedOut bool
	reason    string
	width     int
	height    int
}

func New(coord *timeout.Coordinator) Model {
	return Model{coord: coord}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StateMsg:
		m.state = timeout.DialogState(msg)
		return m, nil

	case LoggedOutMsg:
		m.loggedOut = true
		m.reason = msg.Reason
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state.ShowWarning {
		switch msg.String() {
		case "s", "enter":
			coord := m.coord
			return m, func() tea.Msg {
				coord.ExtendSession()
				return nil
			}
		case "l", "q":
			coord := m.coord
			return m, func() tea.Msg {
				coord.LogoutNow()
				return nil
			}
		}
		// Anything else is activity, which deliberately does not dismiss
		// the warning. Dispatched as a command like the other paths: the
		// coordinator may call back into the event loop, so it must never
		// run inside Update.
		coord := m.coord
		return m, func() tea.Msg {
			coord.OnActivity()
			return nil
		}
	}

	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	coord := m.coord
	return m, func() tea.Msg {
		coord.OnActivity()
		return nil
	}
}

func (m Model) View() string {
	if m.loggedOut {
		return m.center(dialogStyle.Render(
			"Signed out" + hintStyle.Render(fmt.Sprintf(" (%s)", m.reason)) +
				"\n\nLog in again to continue.",
		))
	}

	if m.state.ShowWarning {
		body := fmt.Sprintf(
			"Your session is about to expire\n\n%s\n\n%s",
			countdownStyle.Render(fmt.Sprintf("Logging out in %d seconds", m.state.SecondsLeft)),
			hintStyle.Render("[s] stay logged in   [l] log out now"),
		)
		return m.center(dialogStyle.Render(body))
	}

	return statusStyle.Render("Session active — press any key to keep it alive, ctrl+c to exit")
}

func (m Model) center(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
