package timeout

import (
	"context"
	"sync"
	"testing"
	"time"

	"reunion-member-svc/src/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu          sync.Mutex
	infoSeconds int
	infoErr     error
	pingAlive   bool
	pingErr     error
	pingCalls   int
	logoutCalls int
}

func (f *fakeAPI) SessionInfo(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return 0, f.infoErr
	}
	return f.infoSeconds, nil
}

func (f *fakeAPI) Ping(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingCalls++
	if f.pingErr != nil {
		return false, f.pingErr
	}
	return f.pingAlive, nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return nil
}

func (f *fakeAPI) pings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingCalls
}

func (f *fakeAPI) setPing(alive bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingAlive = alive
	f.pingErr = err
}

type fakeAuth struct {
	mu       sync.Mutex
	loggedIn bool
}

func (f *fakeAuth) LoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn
}

func (f *fakeAuth) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = false
	return nil
}

type fixture struct {
	clk     *clock.Mock
	api     *fakeAPI
	auth    *fakeAuth
	coord   *Coordinator
	mu      sync.Mutex
	logouts []string
}

func newFixture(t *testing.T, timeoutSeconds int, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		clk:  clock.NewMock(),
		api:  &fakeAPI{infoSeconds: timeoutSeconds, pingAlive: true},
		auth: &fakeAuth{loggedIn: true},
	}
	opts.Clock = f.clk
	opts.OnLogout = func(reason, _ string) {
		f.mu.Lock()
		f.logouts = append(f.logouts, reason)
		f.mu.Unlock()
	}
	f.coord = NewCoordinator(f.api, f.auth, opts)
	require.NoError(t, f.coord.Start(context.Background()))
	t.Cleanup(f.coord.Stop)
	return f
}

func (f *fixture) logoutReasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.logouts))
	copy(out, f.logouts)
	return out
}

// suspend emulates the host freezing the process: armed callbacks never run,
// but the stored wall-clock deadlines keep their meaning.
func (f *fixture) suspend() {
	f.coord.mu.Lock()
	f.coord.clearTimersLocked()
	f.coord.mu.Unlock()
}

func TestScheduleWarning_DeadlineSpacing(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	warning, logout := f.coord.Deadlines()
	assert.Equal(t, 120*time.Second, logout.Sub(warning))
	assert.Equal(t, f.clk.Now().Add(1200*time.Second), logout)
}

func TestScheduleWarning_ShortTimeoutWarnsImmediately(t *testing.T) {
	// With a timeout shorter than the warning lead, the countdown spans the
	// whole window.
	f := newFixture(t, 60, Options{})

	warning, logout := f.coord.Deadlines()
	assert.Equal(t, f.clk.Now(), warning)
	assert.Equal(t, 60*time.Second, logout.Sub(warning))

	f.clk.Add(1 * time.Millisecond)
	state := f.coord.State()
	assert.True(t, state.ShowWarning)
	assert.Equal(t, 60, state.SecondsLeft)
}

func TestScheduleWarning_Idempotent(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(10 * time.Second)
	f.coord.OnActivity()
	warning1, logout1 := f.coord.Deadlines()

	f.coord.OnActivity()
	warning2, logout2 := f.coord.Deadlines()

	assert.Equal(t, warning1, warning2)
	assert.Equal(t, logout1, logout2)
}

func TestActivity_DoesNotDismissWarning(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(1080 * time.Second)
	require.True(t, f.coord.State().ShowWarning)
	warningBefore, logoutBefore := f.coord.Deadlines()

	f.coord.OnActivity()

	state := f.coord.State()
	assert.True(t, state.ShowWarning, "activity must not silently dismiss the warning")
	warningAfter, logoutAfter := f.coord.Deadlines()
	assert.Equal(t, warningBefore, warningAfter)
	assert.Equal(t, logoutBefore, logoutAfter)
}

func TestPing_Throttled(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(10 * time.Second)
	f.coord.OnActivity()
	require.Equal(t, 1, f.api.pings())

	f.clk.Add(30 * time.Second)
	f.coord.OnActivity()
	assert.Equal(t, 1, f.api.pings(), "second ping within the throttle window must be dropped")

	f.clk.Add(60 * time.Second)
	f.coord.OnActivity()
	assert.Equal(t, 2, f.api.pings())
}

func TestExtendSession_BypassesThrottle(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(10 * time.Second)
	f.coord.OnActivity()
	require.Equal(t, 1, f.api.pings())

	f.clk.Add(5 * time.Second)
	f.coord.ExtendSession()
	assert.Equal(t, 2, f.api.pings(), "extend must force a ping despite the throttle")
	assert.False(t, f.coord.State().ShowWarning)

	_, logout := f.coord.Deadlines()
	assert.Equal(t, f.clk.Now().Add(1200*time.Second), logout)
}

func TestFullWindow_WarnsThenLogsOutOnce(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(1079 * time.Second)
	assert.False(t, f.coord.State().ShowWarning)

	f.clk.Add(1 * time.Second)
	state := f.coord.State()
	require.True(t, state.ShowWarning)
	assert.Equal(t, 120, state.SecondsLeft)

	f.clk.Add(60 * time.Second)
	assert.Equal(t, 60, f.coord.State().SecondsLeft)

	f.clk.Add(60 * time.Second)
	assert.Equal(t, []string{LogoutReasonTimeout}, f.logoutReasons())
	assert.False(t, f.auth.LoggedIn())
	assert.False(t, f.coord.State().ShowWarning)

	// Nothing further fires after the terminal transition.
	f.clk.Add(1200 * time.Second)
	assert.Equal(t, []string{LogoutReasonTimeout}, f.logoutReasons())
}

func TestCountdown_TicksFromDeadlineNotCounter(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(1080 * time.Second)
	require.True(t, f.coord.State().ShowWarning)

	f.clk.Add(50 * time.Second)
	assert.Equal(t, 70, f.coord.State().SecondsLeft)
}

func TestResume_InsideWarningWindowShowsCorrectedCountdown(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.suspend()
	f.clk.Add(1150 * time.Second)
	f.coord.OnResume()

	state := f.coord.State()
	require.True(t, state.ShowWarning)
	assert.Equal(t, 50, state.SecondsLeft, "countdown must resume from wall-clock remaining, not the full lead")

	f.clk.Add(50 * time.Second)
	assert.Equal(t, []string{LogoutReasonTimeout}, f.logoutReasons())
}

func TestResume_PastDeadlineButServerAliveReschedules(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.suspend()
	f.clk.Add(1250 * time.Second)
	f.api.setPing(true, nil)
	f.coord.OnResume()

	assert.Equal(t, 1, f.api.pings(), "past-deadline resume must verify with the server")
	assert.Empty(t, f.logoutReasons(), "an alive session must not be logged out")
	assert.False(t, f.coord.State().ShowWarning)

	_, logout := f.coord.Deadlines()
	assert.Equal(t, f.clk.Now().Add(1200*time.Second), logout, "a fresh full window starts from now")
}

func TestResume_PastDeadlineAndServerDeadLogsOut(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.suspend()
	f.clk.Add(1250 * time.Second)
	f.api.setPing(false, nil)
	f.coord.OnResume()

	assert.Equal(t, []string{LogoutReasonTimeout}, f.logoutReasons())
	assert.False(t, f.auth.LoggedIn())
}

func TestResume_PastDeadlineNetworkErrorChangesNothing(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.suspend()
	f.clk.Add(1250 * time.Second)
	f.api.setPing(false, context.DeadlineExceeded)
	f.coord.OnResume()

	assert.Empty(t, f.logoutReasons(), "transient failures must not trigger speculative logout")
	assert.True(t, f.auth.LoggedIn())
}

func TestResume_SafeWindowRealignsDeadlines(t *testing.T) {
	f := newFixture(t, 1200, Options{})
	start := f.clk.Now()

	f.suspend()
	f.clk.Add(500 * time.Second)
	f.api.setPing(false, context.DeadlineExceeded) // throttle-window ping fails, keeping the corrected schedule
	f.coord.OnResume()

	assert.Equal(t, 1, f.api.pings())
	warning, logout := f.coord.Deadlines()
	assert.Equal(t, start.Add(1200*time.Second), logout, "realignment must preserve the original wall-clock deadline")
	assert.Equal(t, start.Add(1080*time.Second), warning)
	assert.False(t, f.coord.State().ShowWarning)
}

func TestPingUnauthorized_GracePeriodAfterActivity(t *testing.T) {
	f := newFixture(t, 1200, Options{})
	f.api.setPing(false, models.ErrUnauthorized)

	// Activity at t=35 pings and hits 401, but the member was active this
	// instant: inside the grace, no logout.
	f.clk.Add(35 * time.Second)
	f.coord.OnActivity()
	require.Equal(t, 1, f.api.pings())
	assert.Empty(t, f.logoutReasons())
	assert.True(t, f.auth.LoggedIn())

	// Another 401 five seconds later is still inside the grace window.
	f.clk.Add(5 * time.Second)
	f.coord.ExtendSession()
	assert.Empty(t, f.logoutReasons())

	// Quiet for well past the grace period: the 401 is now authoritative.
	f.clk.Add(160 * time.Second)
	f.coord.ExtendSession()
	assert.Equal(t, []string{LogoutReasonTimeout}, f.logoutReasons())
	assert.False(t, f.auth.LoggedIn())
}

func TestLogoutNow_Immediate(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(1080 * time.Second)
	require.True(t, f.coord.State().ShowWarning)

	f.coord.LogoutNow()
	assert.Equal(t, []string{LogoutReasonUser}, f.logoutReasons())
	assert.False(t, f.auth.LoggedIn())
	assert.False(t, f.coord.State().ShowWarning)
}

func TestLoginFlagRemoved_ClearsWarningWithoutLogout(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(1080 * time.Second)
	require.True(t, f.coord.State().ShowWarning)

	// Another process logged out and removed the flag.
	require.NoError(t, f.auth.Clear())
	f.coord.OnLoginFlagRemoved()

	assert.False(t, f.coord.State().ShowWarning)
	assert.Empty(t, f.logoutReasons(), "the other process already handled the logout")

	// All timers are gone: advancing time causes no further transitions.
	f.clk.Add(1200 * time.Second)
	assert.Empty(t, f.logoutReasons())
}

func TestStart_FallsBackWhenInfoFetchFails(t *testing.T) {
	clk := clock.NewMock()
	api := &fakeAPI{infoErr: context.DeadlineExceeded, pingAlive: true}
	auth := &fakeAuth{loggedIn: true}
	coord := NewCoordinator(api, auth, Options{
		Clock:           clk,
		FallbackTimeout: 300 * time.Second,
	})
	require.NoError(t, coord.Start(context.Background()))
	defer coord.Stop()

	_, logout := coord.Deadlines()
	assert.Equal(t, clk.Now().Add(300*time.Second), logout)
}

func TestStart_NoopWithoutLoginFlag(t *testing.T) {
	clk := clock.NewMock()
	api := &fakeAPI{infoSeconds: 1200}
	auth := &fakeAuth{loggedIn: false}
	coord := NewCoordinator(api, auth, Options{Clock: clk})

	require.NoError(t, coord.Start(context.Background()))
	defer coord.Stop()

	_, logout := coord.Deadlines()
	assert.True(t, logout.IsZero())

	coord.OnActivity()
	assert.Zero(t, api.pings())
}

// The mock clock delivers callbacks exactly on schedule, so the late fires a
// real resume produces are modeled the way the runtime produces them: freeze
// the process (suspend), move the wall clock, then deliver the armed callback.

func TestCountdown_OverdueTickVerifiesWithServer(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(1150 * time.Second)
	require.True(t, f.coord.State().ShowWarning)

	f.suspend()
	f.clk.Add(200 * time.Second)
	f.api.setPing(true, nil)
	f.coord.onCountdownTick()

	assert.Equal(t, 1, f.api.pings(), "an overdue tick must verify with the server")
	assert.Empty(t, f.logoutReasons(), "an alive session must not be logged out locally")
	assert.False(t, f.coord.State().ShowWarning)

	_, logout := f.coord.Deadlines()
	assert.Equal(t, f.clk.Now().Add(1200*time.Second), logout)
}

func TestCountdown_OverdueTickDeadServerLogsOut(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(1150 * time.Second)
	require.True(t, f.coord.State().ShowWarning)

	f.suspend()
	f.clk.Add(200 * time.Second)
	f.api.setPing(false, nil)
	f.coord.onCountdownTick()

	assert.Equal(t, []string{LogoutReasonTimeout}, f.logoutReasons())
	assert.False(t, f.auth.LoggedIn())
}

func TestWarning_OverdueFireVerifiesWithServer(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(10 * time.Second)
	f.suspend()
	f.clk.Add(1300 * time.Second)
	f.api.setPing(true, nil)
	f.coord.onWarningDeadline()

	assert.Equal(t, 1, f.api.pings())
	assert.Empty(t, f.logoutReasons())
	assert.False(t, f.coord.State().ShowWarning, "no stale countdown after the session was confirmed alive")

	_, logout := f.coord.Deadlines()
	assert.Equal(t, f.clk.Now().Add(1200*time.Second), logout)
}

func TestResume_PastDeadlineDisarmsStaleTimers(t *testing.T) {
	f := newFixture(t, 1200, Options{})

	f.clk.Add(10 * time.Second)
	// A resume that beats the overdue callbacks: the wall-clock deadlines
	// are already behind now while the armed timers have not run yet.
	f.coord.mu.Lock()
	f.coord.warningDeadline = f.clk.Now().Add(-200 * time.Second)
	f.coord.logoutDeadline = f.clk.Now().Add(-80 * time.Second)
	f.coord.mu.Unlock()

	f.api.setPing(false, context.DeadlineExceeded)
	f.coord.OnResume()

	f.coord.mu.Lock()
	assert.Nil(t, f.coord.warningTimer, "stale timers must not survive to race the verdict")
	assert.Nil(t, f.coord.countdownTimer)
	f.coord.mu.Unlock()

	assert.Empty(t, f.logoutReasons())
	f.clk.Add(2000 * time.Second)
	assert.Empty(t, f.logoutReasons(), "the disarmed schedule must never fire a local logout")
}

func TestOnState_NotifiesDialog(t *testing.T) {
	var states []DialogState
	f := newFixture(t, 1200, Options{
		OnState: func(s DialogState) { states = append(states, s) },
	})

	f.clk.Add(1080 * time.Second)
	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.True(t, last.ShowWarning)
	assert.Equal(t, 120, last.SecondsLeft)
}
