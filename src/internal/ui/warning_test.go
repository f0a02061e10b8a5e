package ui

import (
	"context"
	"testing"

	"reunion-member-svc/src/internal/timeout"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct{}

func (stubAPI) SessionInfo(ctx context.Context) (int, error) { return 1200, nil }
func (stubAPI) Ping(ctx context.Context) (bool, error)       { return true, nil }
func (stubAPI) Logout(ctx context.Context) error             { return nil }

type stubAuth struct{ loggedIn bool }

func (s *stubAuth) LoggedIn() bool { return s.loggedIn }
func (s *stubAuth) Clear() error   { s.loggedIn = false; return nil }

// Every key path must hand the coordinator call back as a command. Calling it
// synchronously inside Update can deadlock: the coordinator invokes OnState
// under its lock, and the client's OnState sends into the event loop.
func TestHandleKey_NeverCallsCoordinatorInsideUpdate(t *testing.T) {
	coord := timeout.NewCoordinator(stubAPI{}, &stubAuth{loggedIn: true}, timeout.Options{})
	require.NoError(t, coord.Start(context.Background()))
	defer coord.Stop()

	m := New(coord)
	m.state.ShowWarning = true
	m.state.SecondsLeft = 60

	for _, key := range []string{"s", "l", "x"} {
		_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		assert.NotNil(t, cmd, "key %q must be dispatched as a command", key)
	}
}

func TestHandleKey_ActivityKeysWhileActive(t *testing.T) {
	coord := timeout.NewCoordinator(stubAPI{}, &stubAuth{loggedIn: true}, timeout.Options{})
	require.NoError(t, coord.Start(context.Background()))
	defer coord.Stop()

	m := New(coord)

	_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd(), "activity command carries no follow-up message")

	_, cmd = m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
}
