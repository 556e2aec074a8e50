// Package runloop drives the daemon: connectivity every tick, artifact
// re-check on its own cadence plus debounced fs-event signals, installs
// serialized inline behind the watchdog.
package runloop

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"adbwatch/internal/artifact"
	"adbwatch/internal/installer"
	"adbwatch/internal/watchdog"
)

// Watchdog is the connectivity side of the loop.
type Watchdog interface {
	EnsureConnected() bool
	Target() string
	Snapshot() (watchdog.State, time.Time)
}

// Tracker detects artifact changes.
type Tracker interface {
	DetectChange() (artifact.Signature, bool)
}

// Installer runs one blocking install attempt.
type Installer interface {
	Install(apkPath string) installer.Outcome
}

// StatusLine renders the in-place connected line.
type StatusLine interface {
	Update(line string)
	Clear()
}

// Loop ties watchdog, tracker and installer together on a fixed tick. It
// is the single consumer of recheck signals, so DetectChange is only ever
// raced by the poll path it also owns.
type Loop struct {
	watchdog  Watchdog
	tracker   Tracker
	installer Installer
	status    StatusLine

	tick    time.Duration
	poll    time.Duration
	recheck chan struct{}
}

// New wires a Loop. tick drives connectivity, poll the artifact fallback.
func New(w Watchdog, t Tracker, i Installer, status StatusLine, tick, poll time.Duration) *Loop {
	return &Loop{
		watchdog:  w,
		tracker:   t,
		installer: i,
		status:    status,
		tick:      tick,
		poll:      poll,
		recheck:   make(chan struct{}, 1),
	}
}

// RecheckC is the signal channel the artifact watcher feeds. Buffered by
// one; a pending signal already covers any further changes.
func (l *Loop) RecheckC() chan<- struct{} {
	return l.recheck
}

// Run loops until ctx is cancelled. There is no other termination path.
func (l *Loop) Run(ctx context.Context) error {
	log.Info().Dur("tick", l.tick).Dur("poll", l.poll).Str("target", l.watchdog.Target()).Msg("run loop started")

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	// Poll cadence tracks its own elapsed time, decoupled from the tick.
	lastPoll := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.status.Clear()
			log.Info().Msg("run loop stopped")
			return errors.Wrap(ctx.Err(), "run loop interrupted")
		case <-ticker.C:
			l.renderConnectivity()
			if time.Since(lastPoll) >= l.poll {
				lastPoll = time.Now()
				l.checkArtifact()
			}
		case <-l.recheck:
			l.checkArtifact()
		}
	}
}

func (l *Loop) renderConnectivity() {
	if !l.watchdog.EnsureConnected() {
		// Watchdog already cleared the line and logged the recovery steps.
		return
	}
	_, since := l.watchdog.Snapshot()
	l.status.Update(fmt.Sprintf("connected to %s since %s (up %s)",
		l.watchdog.Target(), since.Format("15:04:05"), time.Since(since).Round(time.Second)))
}

func (l *Loop) checkArtifact() {
	sig, changed := l.tracker.DetectChange()
	if !changed {
		return
	}
	l.status.Clear()
	log.Info().Str("apk", sig.Path).Int64("size", sig.Size).Time("modified", sig.ModTime).Msg("new artifact detected")
	l.installer.Install(sig.Path)
}
