package artifact

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Watch streams debounced recheck signals for the tracked directory into
// recheck. Raw create/write/rename events on matching files re-arm the quiet
// period; one signal is sent per quiescence. The send is non-blocking: a
// pending, unconsumed signal already covers the change.
//
// Errors from the native watcher are logged only; the poll fallback still
// detects changes when the event stream dies.
func (t *Tracker) Watch(ctx context.Context, debounce time.Duration, recheck chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fs watcher")
	}
	if err := watcher.Add(t.dir); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "watch %s", t.dir)
	}

	deb := NewDebouncer(debounce, func() {
		select {
		case recheck <- struct{}{}:
		default:
		}
	})

	go func() {
		defer watcher.Close()
		defer deb.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if !t.matches(event.Name) {
					continue
				}
				log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("raw artifact event")
				deb.Bump()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("fs watcher error, poll fallback still active")
			}
		}
	}()

	log.Info().Str("dir", t.dir).Str("glob", t.glob).Dur("debounce", debounce).Msg("watching artifact directory")
	return nil
}

func (t *Tracker) matches(path string) bool {
	ok, err := filepath.Match(t.glob, filepath.Base(path))
	return err == nil && ok
}
