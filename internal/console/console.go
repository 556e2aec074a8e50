// Package console renders the single in-place status line and the audible
// install cues. State lives in an owned struct, not package globals, so the
// run loop and watchdog share one instance.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Status owns one overwritable terminal line.
type Status struct {
	mu    sync.Mutex
	out   io.Writer
	width int
}

// New creates a Status writing to out; nil means os.Stdout.
func New(out io.Writer) *Status {
	if out == nil {
		out = os.Stdout
	}
	return &Status{out: out}
}

// Update rewrites the status line in place, padding over any longer
// previous content.
func (s *Status) Update(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	padded := line
	if pad := s.width - len(line); pad > 0 {
		padded += strings.Repeat(" ", pad)
	}
	fmt.Fprintf(s.out, "\r%s", padded)
	s.width = len(line)
}

// Clear blanks the status line so discrete log output starts on a clean row.
func (s *Status) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width == 0 {
		return
	}
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.width))
	s.width = 0
}

// Bell emits n terminal bells: one for install success, two for failure.
func (s *Status) Bell(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, strings.Repeat("\a", n))
}
