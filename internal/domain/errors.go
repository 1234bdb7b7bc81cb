package domain

import (
	"errors"
	"fmt"
)

type DiscoveryErrorKind string

const (
	DiscoveryProcessNotFound DiscoveryErrorKind = "process_not_found"
	DiscoveryNoListeningPort DiscoveryErrorKind = "no_listening_port"
	DiscoveryTimeout         DiscoveryErrorKind = "timeout"
	DiscoveryToolFailure     DiscoveryErrorKind = "tool_failure"
)

// DiscoveryError is returned by a port resolver.
type DiscoveryError struct {
	Kind    DiscoveryErrorKind
	Pattern string

	// Tool failure details.
	Tool     string
	ExitCode int
	Detail   string

	Err error
}

func (e *DiscoveryError) Error() string {
	switch e.Kind {
	case DiscoveryProcessNotFound:
		return fmt.Sprintf("no running process matches %q", e.Pattern)
	case DiscoveryNoListeningPort:
		return fmt.Sprintf("process matching %q has no listening TCP port", e.Pattern)
	case DiscoveryTimeout:
		return fmt.Sprintf("port discovery for %q timed out", e.Pattern)
	case DiscoveryToolFailure:
		msg := fmt.Sprintf("port discovery tool %s failed", e.Tool)
		if e.ExitCode != 0 {
			msg += fmt.Sprintf(" (code %d)", e.ExitCode)
		}
		if e.Detail != "" {
			msg += ": " + e.Detail
		} else if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	default:
		return fmt.Sprintf("port discovery for %q failed: %s", e.Pattern, e.Kind)
	}
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

type DispatchErrorKind string

const (
	DispatchConnectionRefused DispatchErrorKind = "connection_refused"
	DispatchTimeout           DispatchErrorKind = "timeout"
	DispatchNonSuccessStatus  DispatchErrorKind = "non_success_status"
	DispatchTransportError    DispatchErrorKind = "transport_error"
	DispatchCircuitOpen       DispatchErrorKind = "circuit_open"
)

// DispatchError is returned by the command dispatcher.
type DispatchError struct {
	Kind       DispatchErrorKind
	URL        string
	StatusCode int // set for DispatchNonSuccessStatus
	Err        error
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case DispatchConnectionRefused:
		return fmt.Sprintf("connection refused by %s", e.URL)
	case DispatchTimeout:
		return fmt.Sprintf("request to %s timed out", e.URL)
	case DispatchNonSuccessStatus:
		return fmt.Sprintf("%s answered with status %d", e.URL, e.StatusCode)
	case DispatchCircuitOpen:
		return fmt.Sprintf("circuit open for %s", e.URL)
	default:
		if e.Err != nil {
			return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("request to %s failed", e.URL)
	}
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsDiscoveryKind reports whether err carries a DiscoveryError of the given kind.
func IsDiscoveryKind(err error, kind DiscoveryErrorKind) bool {
	var de *DiscoveryError
	return errors.As(err, &de) && de.Kind == kind
}

// IsDispatchKind reports whether err carries a DispatchError of the given kind.
func IsDispatchKind(err error, kind DispatchErrorKind) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Kind == kind
}
