// Package artifact detects when a new build lands in the watched directory.
// Two redundant triggers feed the same compare-and-swap: a debounced
// fsnotify stream and a fixed-interval poll.
package artifact

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Signature is a cheap identity proxy for one build artifact. The zero value
// means "no artifact".
type Signature struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// IsZero reports the "no artifact" value.
func (s Signature) IsZero() bool {
	return s.Path == "" && s.ModTime.IsZero() && s.Size == 0
}

// Equal compares all three fields.
func (s Signature) Equal(other Signature) bool {
	return s.Path == other.Path && s.ModTime.Equal(other.ModTime) && s.Size == other.Size
}

// SampleLatest returns the signature of the most recently modified file
// matching glob directly under dir. Modification-time ties break towards the
// lexicographically later path. ok is false when nothing matches.
func SampleLatest(dir, glob string) (sig Signature, ok bool, err error) {
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return Signature{}, false, errors.Wrapf(err, "glob %s in %s", glob, dir)
	}
	var candidates []Signature
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		candidates = append(candidates, Signature{Path: path, ModTime: info.ModTime(), Size: info.Size()})
	}
	if len(candidates) == 0 {
		return Signature{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ModTime.Equal(candidates[j].ModTime) {
			return candidates[i].ModTime.Before(candidates[j].ModTime)
		}
		return candidates[i].Path < candidates[j].Path
	})
	return candidates[len(candidates)-1], true, nil
}

// Tracker holds the known signature exclusively. DetectChange is the only
// mutation path; both triggers race into it and exactly one claims a
// genuine update.
type Tracker struct {
	dir  string
	glob string

	mu    sync.Mutex
	known Signature
}

// NewTracker primes the known signature from the current directory content.
func NewTracker(dir, glob string) *Tracker {
	t := &Tracker{dir: dir, glob: glob}
	sig, ok, err := SampleLatest(dir, glob)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("dir", dir).Msg("initial artifact sample failed")
	case ok:
		t.known = sig
		log.Info().Str("apk", sig.Path).Int64("size", sig.Size).Msg("tracking current artifact")
	default:
		log.Info().Str("dir", dir).Str("glob", glob).Msg("artifact not present yet")
	}
	return t
}

// Known returns the current known signature.
func (t *Tracker) Known() Signature {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.known
}

// DetectChange samples the latest artifact and claims it when it differs
// from the known one. Only the single caller that observes the difference
// gets changed=true; concurrent callers on the same version see no change.
// Disappearance of all artifacts is not treated as a change.
func (t *Tracker) DetectChange() (Signature, bool) {
	latest, ok, err := SampleLatest(t.dir, t.glob)
	if err != nil {
		log.Warn().Err(err).Str("dir", t.dir).Msg("artifact sample failed")
		return Signature{}, false
	}
	if !ok {
		log.Debug().Str("dir", t.dir).Str("glob", t.glob).Msg("artifact not present yet")
		return Signature{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if latest.Equal(t.known) {
		return Signature{}, false
	}
	t.known = latest
	return latest, true
}
