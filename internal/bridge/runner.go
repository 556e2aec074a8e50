package bridge

import (
	stderrors "errors"
	"os/exec"
)

// Runner executes one external process and reports its combined output and
// exit code. err is non-nil only when the process could not be started.
type Runner interface {
	Run(name string, args ...string) (output string, exitCode int, err error)
}

type execRunner struct{}

func (execRunner) Run(name string, args ...string) (string, int, error) {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode(), nil
		}
		return string(out), -1, err
	}
	return string(out), 0, nil
}
