package timeout

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"reunion-member-svc/src/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// Defaults for the coordinator's tunables. The auth grace is a pragmatic
// guard against cookie/token propagation races right after login, not a hard
// contract; deployments may tune it.
const (
	DefaultWarningLead     = 120 * time.Second
	DefaultPingThrottle    = 60 * time.Second
	DefaultFallbackTimeout = 1200 * time.Second
	DefaultAuthGrace       = 30 * time.Second
)

// resumeSlack bounds how late a timer callback may run and still be trusted.
// After the host process resumes from suspension, Go delivers the armed
// callbacks all at once, far past their schedule; a callback that finds
// itself beyond this slack past the logout deadline must verify with the
// server instead of logging out locally.
const resumeSlack = 5 * time.Second

// LogoutReasonTimeout is passed to the navigation callback when the session
// ended without an explicit user action.
const (
	LogoutReasonTimeout = "timeout"
	LogoutReasonUser    = "user"
)

// SessionAPI is the server surface the coordinator synchronizes against.
// Ping must return models.ErrUnauthorized for HTTP 401/403.
type SessionAPI interface {
	SessionInfo(ctx context.Context) (int, error)
	Ping(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
}

// AuthState is the local persisted login flag.
type AuthState interface {
	LoggedIn() bool
	Clear() error
}

// DialogState is the contract exposed to the warning-dialog presentation
// layer.
type DialogState struct {
	ShowWarning bool
	SecondsLeft int
}

// Options configures a Coordinator. Zero durations take the package defaults.
type Options struct {
	WarningLead     time.Duration
	PingThrottle    time.Duration
	FallbackTimeout time.Duration
	AuthGrace       time.Duration

	// Clock is injectable for tests; nil means the real wall clock.
	Clock clock.Clock

	// OnState is invoked after every dialog-visible change. It runs with the
	// coordinator's lock held and must not call back into the coordinator
	// synchronously; dispatch to your event loop instead.
	OnState func(DialogState)

	// OnLogout is the navigation hook: reason is "timeout" or "user",
	// returnPath is where the member should land after re-authenticating.
	OnLogout func(reason, returnPath string)

	ReturnPath string
}

func (o *Options) normalize() {
	if o.WarningLead <= 0 {
		o.WarningLead = DefaultWarningLead
	}
	if o.PingThrottle <= 0 {
		o.PingThrottle = DefaultPingThrottle
	}
	if o.FallbackTimeout <= 0 {
		o.FallbackTimeout = DefaultFallbackTimeout
	}
	if o.AuthGrace <= 0 {
		o.AuthGrace = DefaultAuthGrace
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}

// Coordinator keeps a local idle-timeout countdown synchronized with the
// authoritative server-side session. It schedules a warning ahead of the
// logout deadline, counts down while the warning shows, pings the server to
// keep the session alive, and corrects its timers from wall-clock deadlines
// after the host process resumes from suspension.
type Coordinator struct {
	mu   sync.Mutex
	clk  clock.Clock
	api  SessionAPI
	auth AuthState
	opts Options

	timeoutSeconds  int
	warningDeadline time.Time
	logoutDeadline  time.Time
	showWarning     bool
	secondsLeft     int
	lastActivityAt  time.Time
	lastPingAt      time.Time

	warningTimer   *clock.Timer
	countdownTimer *clock.Timer

	started   bool
	stopped   bool
	loggedOut bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCoordinator(api SessionAPI, auth AuthState, opts Options) *Coordinator {
	opts.normalize()
	return &Coordinator{
		clk:  opts.Clock,
		api:  api,
		auth: auth,
		opts: opts,
	}
}

// Start resolves the server-configured idle timeout and arms the warning
// schedule. A failed config fetch falls back to DefaultFallbackTimeout so the
// member still gets warned rather than never. Start is a no-op when no login
// flag is present.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return errors.New("coordinator already started")
	}
	if !c.auth.LoggedIn() {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.lastActivityAt = c.clk.Now()
	c.mu.Unlock()

	seconds, err := c.api.SessionInfo(c.ctx)
	if err != nil {
		seconds = int(c.opts.FallbackTimeout / time.Second)
		logrus.WithError(err).WithField("fallback_seconds", seconds).
			Warn("Session info fetch failed, using fallback timeout")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}
	c.timeoutSeconds = seconds
	c.scheduleWarningLocked(seconds)
	return nil
}

// Stop clears all timers and makes the coordinator inert. Safe to call more
// than once.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.clearTimersLocked()
	c.setWarningLocked(false, 0)
	if c.cancel != nil {
		c.cancel()
	}
}

// State returns the current dialog contract values.
func (c *Coordinator) State() DialogState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return DialogState{ShowWarning: c.showWarning, SecondsLeft: c.secondsLeft}
}

// Deadlines exposes the armed wall-clock instants.
func (c *Coordinator) Deadlines() (warning, logout time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warningDeadline, c.logoutDeadline
}

// OnActivity is the host's single entry point for member input (pointer,
// key, scroll, touch). Activity while the warning dialog is visible is
// deliberately ignored: only an explicit ExtendSession may dismiss it.
func (c *Coordinator) OnActivity() {
	c.mu.Lock()
	c.lastActivityAt = c.clk.Now()
	if c.stopped || c.loggedOut || !c.auth.LoggedIn() || c.showWarning || !c.started {
		c.mu.Unlock()
		return
	}
	// The local reset and the server ping are independent: a failed ping
	// must not undo the reset, and a throttled ping still leaves the
	// reset in place.
	c.scheduleWarningLocked(c.timeoutSeconds)
	c.mu.Unlock()

	c.pingServer(false)
}

// ExtendSession handles the dialog's "Stay Logged In" action: dismiss the
// warning, ping unthrottled, and re-arm the full window.
func (c *Coordinator) ExtendSession() {
	c.mu.Lock()
	if c.stopped || c.loggedOut || !c.started {
		c.mu.Unlock()
		return
	}
	c.clearTimersLocked()
	c.setWarningLocked(false, 0)
	c.lastPingAt = time.Time{} // next ping bypasses the throttle
	c.mu.Unlock()

	c.pingServer(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.loggedOut {
		return
	}
	c.scheduleWarningLocked(c.timeoutSeconds)
}

// LogoutNow handles the dialog's "Log Out" action.
func (c *Coordinator) LogoutNow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearTimersLocked()
	c.performLogoutLocked(LogoutReasonUser)
}

// OnResume must be called when the host process returns from suspension
// (hidden tab, laptop sleep, SIGSTOP). Armed timers may have fired
// arbitrarily late, so state is re-derived from the stored wall-clock
// deadlines instead of trusting elapsed-timer assumptions.
func (c *Coordinator) OnResume() {
	c.mu.Lock()
	if c.stopped || c.loggedOut || !c.started || !c.auth.LoggedIn() {
		c.mu.Unlock()
		return
	}

	now := c.clk.Now()
	remaining := roundSeconds(c.logoutDeadline.Sub(now))

	switch {
	case !now.Before(c.logoutDeadline) || remaining <= 0:
		// Past the logout deadline. The member may have been active in
		// another window that refreshed the server session, so ask the
		// server before logging out. The stale timers are disarmed first
		// so their overdue callbacks cannot race the verdict; a transient
		// network failure changes nothing, and the next activity re-arms.
		c.clearTimersLocked()
		c.mu.Unlock()
		c.pingServer(true)

	case !now.Before(c.warningDeadline):
		// Inside the warning window: show the countdown with the
		// corrected remaining seconds, never the stale full lead.
		c.clearTimersLocked()
		c.startCountdownLocked(remaining)
		c.mu.Unlock()

	default:
		// Still safe: realign timers to the true wall-clock deadlines and
		// ping opportunistically (throttled).
		c.scheduleWarningLocked(remaining)
		c.mu.Unlock()
		c.pingServer(false)
	}
}

// OnLoginFlagRemoved reacts to the login flag disappearing (logout performed
// by another process): clear timers and hide any warning without another
// logout round-trip.
func (c *Coordinator) OnLoginFlagRemoved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.loggedOut {
		return
	}
	c.loggedOut = true
	c.clearTimersLocked()
	c.setWarningLocked(false, 0)
	logrus.Debug("Login flag removed elsewhere, coordinator disarmed")
}

// scheduleWarningLocked arms a fresh warning/logout schedule for totalSeconds
// from now. It is idempotent: every call fully overwrites the deadlines and
// replaces the timers, so the latest call always wins.
func (c *Coordinator) scheduleWarningLocked(totalSeconds int) {
	c.clearTimersLocked()

	leadSeconds := int(c.opts.WarningLead / time.Second)
	if leadSeconds > totalSeconds {
		leadSeconds = totalSeconds
	}

	now := c.clk.Now()
	c.warningDeadline = now.Add(time.Duration(totalSeconds-leadSeconds) * time.Second)
	c.logoutDeadline = now.Add(time.Duration(totalSeconds) * time.Second)

	// A fresh activity cycle supersedes any visible warning.
	c.setWarningLocked(false, 0)

	c.warningTimer = c.clk.AfterFunc(c.warningDeadline.Sub(now), c.onWarningDeadline)

	logrus.WithFields(logrus.Fields{
		"warning_at": c.warningDeadline,
		"logout_at":  c.logoutDeadline,
	}).Debug("Session warning scheduled")
}

func (c *Coordinator) onWarningDeadline() {
	c.mu.Lock()
	if c.stopped || c.loggedOut || !c.auth.LoggedIn() {
		c.mu.Unlock()
		return
	}
	now := c.clk.Now()
	if now.Sub(c.logoutDeadline) > resumeSlack {
		// Fired long past schedule: the process was suspended. Server
		// verdict first, never a blind local logout.
		c.clearTimersLocked()
		c.mu.Unlock()
		c.pingServer(true)
		return
	}
	c.startCountdownLocked(roundSeconds(c.logoutDeadline.Sub(now)))
	c.mu.Unlock()
}

// startCountdownLocked shows the warning and begins the 1-second countdown.
// Each tick re-derives the displayed value from the logout deadline, so late
// ticks self-correct instead of drifting.
func (c *Coordinator) startCountdownLocked(leadSeconds int) {
	if leadSeconds < 0 {
		leadSeconds = 0
	}
	c.setWarningLocked(true, leadSeconds)
	c.countdownTimer = c.clk.AfterFunc(time.Second, c.onCountdownTick)
}

func (c *Coordinator) onCountdownTick() {
	c.mu.Lock()
	if c.stopped || c.loggedOut || !c.showWarning {
		c.mu.Unlock()
		return
	}

	now := c.clk.Now()
	if now.Sub(c.logoutDeadline) > resumeSlack {
		// An overdue tick means the host was suspended mid-countdown, not
		// that the member sat through it. Same rule as OnResume past the
		// deadline: ask the server. The dialog stays up until the verdict.
		c.clearTimersLocked()
		c.mu.Unlock()
		c.pingServer(true)
		return
	}

	remaining := roundSeconds(c.logoutDeadline.Sub(now))
	if remaining <= 0 {
		c.clearTimersLocked()
		c.performLogoutLocked(LogoutReasonTimeout)
		c.mu.Unlock()
		return
	}

	c.setWarningLocked(true, remaining)
	c.countdownTimer = c.clk.AfterFunc(time.Second, c.onCountdownTick)
	c.mu.Unlock()
}

// pingServer asks the server to keep the session alive. Calls within the
// throttle window of the previous attempt are dropped unless bypass is set.
func (c *Coordinator) pingServer(bypass bool) {
	c.mu.Lock()
	if c.stopped || c.loggedOut || !c.started {
		c.mu.Unlock()
		return
	}
	now := c.clk.Now()
	if !bypass && !c.lastPingAt.IsZero() && now.Sub(c.lastPingAt) < c.opts.PingThrottle {
		c.mu.Unlock()
		return
	}
	c.lastPingAt = now
	ctx := c.ctx
	c.mu.Unlock()

	alive, err := c.api.Ping(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.loggedOut {
		return
	}

	switch {
	case err == nil && alive:
		c.scheduleWarningLocked(c.timeoutSeconds)

	case err == nil && !alive:
		c.clearTimersLocked()
		c.performLogoutLocked(LogoutReasonTimeout)

	case errors.Is(err, models.ErrUnauthorized):
		// An auth failure right after login can be a propagation race,
		// so only trust it once the member has been quiet for the grace
		// period.
		if c.auth.LoggedIn() && c.clk.Now().Sub(c.lastActivityAt) >= c.opts.AuthGrace {
			c.clearTimersLocked()
			c.performLogoutLocked(LogoutReasonTimeout)
		} else {
			logrus.Debug("Ping unauthorized within activity grace, ignoring")
		}

	default:
		// Transient network failure: no state change, retried on the
		// next activity or throttle window.
		logrus.WithError(err).Debug("Session ping failed")
	}
}

// performLogoutLocked drives the client-side logout transition exactly once:
// clear the login flag (which broadcasts to other consumers), fire the
// best-effort server logout, and hand navigation to the host.
func (c *Coordinator) performLogoutLocked(reason string) {
	if c.loggedOut {
		return
	}
	c.loggedOut = true
	c.setWarningLocked(false, 0)

	if err := c.auth.Clear(); err != nil {
		logrus.WithError(err).Warn("Failed to clear login flag")
	}

	// Logout must proceed even if the server is unreachable.
	ctx := c.ctx
	api := c.api
	go func() {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := api.Logout(ctx); err != nil {
			logrus.WithError(err).Debug("Best-effort server logout failed")
		}
	}()

	logrus.WithField("reason", reason).Info("Session ended, redirecting to login")

	if c.opts.OnLogout != nil {
		c.opts.OnLogout(reason, c.opts.ReturnPath)
	}
}

func (c *Coordinator) setWarningLocked(show bool, secondsLeft int) {
	changed := c.showWarning != show || c.secondsLeft != secondsLeft
	c.showWarning = show
	c.secondsLeft = secondsLeft
	if changed && c.opts.OnState != nil {
		c.opts.OnState(DialogState{ShowWarning: show, SecondsLeft: secondsLeft})
	}
}

func (c *Coordinator) clearTimersLocked() {
	if c.warningTimer != nil {
		c.warningTimer.Stop()
		c.warningTimer = nil
	}
	if c.countdownTimer != nil {
		c.countdownTimer.Stop()
		c.countdownTimer = nil
	}
}

func roundSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}
