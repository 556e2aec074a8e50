package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"adbwatch/internal/artifact"
	"adbwatch/internal/bridge"
	"adbwatch/internal/config"
	"adbwatch/internal/console"
	"adbwatch/internal/env"
	"adbwatch/internal/installer"
	"adbwatch/internal/journal"
	"adbwatch/internal/runloop"
	"adbwatch/internal/watchdog"
)

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "adbwatch",
		Short: "Keep a wireless adb link alive and auto-install new apks",
		Long: `adbwatch resolves a wireless debug target from the first USB-attached
device, then runs until interrupted: a watchdog repairs the link whenever it
drops, and the newest apk placed in the watched directory is installed
exactly once per build.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Dir, "dir", cfg.Dir, "Watched artifact directory (ADBWATCH_DIR)")
	cmd.Flags().StringVar(&cfg.Glob, "glob", cfg.Glob, "Artifact file glob inside the directory (ADBWATCH_GLOB)")
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Wireless debug port armed on the device (ADBWATCH_PORT)")
	cmd.Flags().DurationVar(&cfg.Tick, "tick", cfg.Tick, "Watchdog loop period (ADBWATCH_TICK)")
	cmd.Flags().DurationVar(&cfg.Poll, "poll", cfg.Poll, "Artifact poll fallback interval (ADBWATCH_POLL)")
	cmd.Flags().DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "Quiet period collapsing fs event bursts (ADBWATCH_DEBOUNCE)")
	cmd.Flags().StringVar(&cfg.ADBPath, "adb", cfg.ADBPath, "adb binary to invoke (ADB_PATH)")
	cmd.Flags().StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "sqlite install journal path, empty disables (ADBWATCH_JOURNAL_DB_PATH)")

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	client := bridge.NewClient(cfg.ADBPath)
	if err := client.Probe(); err != nil {
		log.Warn().Err(err).Msg("adb not usable yet, continuing anyway")
	}

	target, err := watchdog.ResolveTarget(ctx, client, cfg.Port, cfg.Tick)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	var jrnl *journal.Journal
	if cfg.JournalPath != "" {
		jrnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.JournalPath).Msg("install journal disabled")
		} else {
			defer jrnl.Close()
		}
	}

	status := console.New(os.Stdout)
	wd := watchdog.New(client, target, cfg.Port, status)
	tracker := artifact.NewTracker(cfg.Dir, cfg.Glob)
	coordinator := installer.New(client, wd, jrnl, status)
	loop := runloop.New(wd, tracker, coordinator, status, cfg.Tick, cfg.Poll)

	if err := tracker.Watch(ctx, cfg.Debounce, loop.RecheckC()); err != nil {
		log.Warn().Err(err).Msg("fs watch unavailable, polling only")
	}

	err = loop.Run(ctx)
	if ctx.Err() != nil {
		// External interruption is the only planned way out.
		return nil
	}
	return err
}

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	_ = env.Ensure()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("adbwatch failed")
	}
}
