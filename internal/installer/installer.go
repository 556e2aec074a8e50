// Package installer serializes one install attempt behind the connectivity
// watchdog: readiness wait, link check, adb install, outcome record.
package installer

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"adbwatch/internal/journal"
)

// Bridge installs one package on a target.
type Bridge interface {
	InstallPackage(target, apkPath string) (int, error)
}

// Connector guarantees link state before an install.
type Connector interface {
	EnsureConnected() bool
	Target() string
}

// Recorder persists install outcomes.
type Recorder interface {
	Record(journal.Entry) error
}

// Notifier surfaces the outcome to the user.
type Notifier interface {
	Clear()
	Bell(n int)
}

// Outcome is the ephemeral result of one install attempt.
type Outcome struct {
	ApkPath   string
	ExitCode  int
	Succeeded bool
}

// Coordinator runs install attempts. Aborted attempts are never retried on
// their own; only the next detected artifact change re-triggers.
type Coordinator struct {
	bridge   Bridge
	watchdog Connector
	recorder Recorder
	notifier Notifier

	readyTimeout time.Duration
	readyPoll    time.Duration
}

// New creates a Coordinator. recorder and notifier may be nil.
func New(b Bridge, w Connector, recorder Recorder, notifier Notifier) *Coordinator {
	return &Coordinator{
		bridge:       b,
		watchdog:     w,
		recorder:     recorder,
		notifier:     notifier,
		readyTimeout: 60 * time.Second,
		readyPoll:    200 * time.Millisecond,
	}
}

// Install pushes the apk to the device once the file is fully written and
// the link is up. Blocks its caller for the whole attempt.
func (c *Coordinator) Install(apkPath string) Outcome {
	info, err := os.Stat(apkPath)
	if err != nil {
		log.Warn().Err(err).Str("apk", apkPath).Msg("install skipped, artifact missing")
		return Outcome{ApkPath: apkPath, ExitCode: -1}
	}
	if !c.waitReady(apkPath) {
		log.Warn().Str("apk", apkPath).Dur("timeout", c.readyTimeout).Msg("install aborted, artifact never became readable")
		return Outcome{ApkPath: apkPath, ExitCode: -1}
	}
	if !c.watchdog.EnsureConnected() {
		log.Warn().Str("apk", apkPath).Str("target", c.watchdog.Target()).Msg("install skipped, device unreachable")
		return Outcome{ApkPath: apkPath, ExitCode: -1}
	}

	log.Info().Str("apk", apkPath).Int64("size", info.Size()).Str("target", c.watchdog.Target()).Msg("installing artifact")
	code, err := c.bridge.InstallPackage(c.watchdog.Target(), apkPath)
	if err != nil {
		log.Error().Err(err).Str("apk", apkPath).Msg("install invocation failed")
		code = -1
	}
	outcome := Outcome{ApkPath: apkPath, ExitCode: code, Succeeded: err == nil && code == 0}
	c.report(outcome, info.Size())
	return outcome
}

func (c *Coordinator) report(outcome Outcome, size int64) {
	if c.recorder != nil {
		if err := c.recorder.Record(journal.Entry{
			ApkPath:   outcome.ApkPath,
			SizeBytes: size,
			ExitCode:  outcome.ExitCode,
			Succeeded: outcome.Succeeded,
		}); err != nil {
			log.Warn().Err(err).Msg("journal write failed")
		}
	}
	if c.notifier != nil {
		c.notifier.Clear()
	}
	if outcome.Succeeded {
		log.Info().Str("apk", outcome.ApkPath).Msg("install succeeded")
		if c.notifier != nil {
			c.notifier.Bell(1)
		}
		return
	}
	log.Error().Str("apk", outcome.ApkPath).Int("exit_code", outcome.ExitCode).Msg("install failed")
	if c.notifier != nil {
		c.notifier.Bell(2)
	}
}

// waitReady polls a write-open of the file until the builder has released
// it. On platforms with advisory locks only, the open usually succeeds on
// the first try.
func (c *Coordinator) waitReady(apkPath string) bool {
	deadline := time.Now().Add(c.readyTimeout)
	for {
		f, err := os.OpenFile(apkPath, os.O_RDWR, 0)
		if err == nil {
			f.Close()
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(c.readyPoll)
	}
}
