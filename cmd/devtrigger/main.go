package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/djlord-it/devtrigger/internal/domain"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess        = 0
	exitRuntimeError   = 1
	exitInvalidConfig  = 2
	exitDiscoveryError = 3
	exitDispatchError  = 4
)

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return exitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, err)
	return exitRuntimeError
}

// exitCodeFor maps a one-shot outcome to the process exit code.
func exitCodeFor(o domain.ReloadOutcome) int {
	switch o.Class() {
	case domain.OutcomeSuccess:
		return exitSuccess
	case domain.OutcomeDiscoveryError:
		return exitDiscoveryError
	case domain.OutcomeDispatchError:
		return exitDispatchError
	default:
		return exitRuntimeError
	}
}
