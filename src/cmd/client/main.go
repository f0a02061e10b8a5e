package main

import (
	"context"
	"flag"
	"time"

	"reunion-member-svc/src/clients"
	"reunion-member-svc/src/internal/authstate"
	"reunion-member-svc/src/internal/config"
	"reunion-member-svc/src/internal/logger"
	"reunion-member-svc/src/internal/timeout"
	"reunion-member-svc/src/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// suspendCheckInterval and suspendThreshold drive resume detection: when the
// gap between two checks is much larger than the interval, the process was
// suspended and the coordinator must re-derive its state from wall-clock
// deadlines.
const (
	suspendCheckInterval = 1 * time.Second
	suspendThreshold     = 5 * time.Second
)

func main() {
	email := flag.String("email", "", "member email for login")
	password := flag.String("password", "", "member password for login")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg)

	store, err := authstate.NewStore(cfg.Client.LoginFlagPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open auth state store")
	}
	defer store.Close()

	api := clients.NewSessionAPI(&cfg.Client, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !store.LoggedIn() {
		if *email == "" || *password == "" {
			logrus.Fatal("Not logged in: pass -email and -password")
		}
		resp, err := api.Login(ctx, *email, *password)
		if err != nil {
			logrus.WithError(err).Fatal("Login failed")
		}
		if err := store.Set(authstate.State{Token: resp.Token, SessionID: resp.SessionID}); err != nil {
			logrus.WithError(err).Fatal("Failed to persist login flag")
		}
		logrus.WithField("session_id", resp.SessionID).Info("Logged in")
	}

	var program *tea.Program

	coord := timeout.NewCoordinator(api, store, timeout.Options{
		WarningLead:     time.Duration(cfg.Client.WarningLeadSeconds) * time.Second,
		PingThrottle:    time.Duration(cfg.Client.PingThrottleSeconds) * time.Second,
		FallbackTimeout: time.Duration(cfg.Client.FallbackTimeoutSeconds) * time.Second,
		AuthGrace:       time.Duration(cfg.Client.AuthGraceSeconds) * time.Second,
		ReturnPath:      "/",
		OnState: func(s timeout.DialogState) {
			if program != nil {
				program.Send(ui.StateMsg(s))
			}
		},
		OnLogout: func(reason, _ string) {
			if program != nil {
				program.Send(ui.LoggedOutMsg{Reason: reason})
			}
		},
	})

	program = tea.NewProgram(ui.New(coord), tea.WithAltScreen())

	if err := coord.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to start session coordinator")
	}
	defer coord.Stop()

	// Logout performed by another client process removes the login flag;
	// mirror it here so no stale warning stays on screen.
	if err := store.Watch(); err != nil {
		logrus.WithError(err).Warn("Cross-process logout watch unavailable")
	}
	events := store.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if !event.LoggedIn {
					coord.OnLoginFlagRemoved()
					if program != nil {
						program.Send(ui.LoggedOutMsg{Reason: "remote"})
					}
				}
			}
		}
	}()

	go watchForSuspend(ctx, coord)

	if _, err := program.Run(); err != nil {
		logrus.WithError(err).Fatal("UI error")
	}
}

// watchForSuspend notices large wall-clock jumps between ticks, which mean
// the process (or the machine) was suspended and armed timers may have fired
// arbitrarily late.
func watchForSuspend(ctx context.Context, coord *timeout.Coordinator) {
	ticker := time.NewTicker(suspendCheckInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(last) > suspendThreshold {
				logrus.WithField("gap", now.Sub(last)).Debug("Resume from suspend detected")
				coord.OnResume()
			}
			last = now
		}
	}
}
