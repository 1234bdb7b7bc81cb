// Package reporter turns reload outcomes into one human-readable status line
// each. Reporters never panic and never return errors.
package reporter

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/djlord-it/devtrigger/internal/domain"
)

const DefaultLabel = "Hot Reload"

type Reporter interface {
	Report(outcome domain.ReloadOutcome)
}

// Format renders the status message for an outcome.
func Format(label string, o domain.ReloadOutcome) string {
	switch o.Class() {
	case domain.OutcomeSuccess:
		return fmt.Sprintf("%s: Reloaded! (status %d, port %d)", label, o.StatusCode, o.Port)
	case domain.OutcomeDiscoveryError:
		return fmt.Sprintf("%s: ERROR discovering target: %v", label, o.Err)
	case domain.OutcomeDispatchError:
		return fmt.Sprintf("%s: ERROR during reload. Is the target running? Details: %v", label, o.Err)
	case domain.OutcomeDropped:
		return fmt.Sprintf("%s: ERROR reload skipped, too many pending reloads (%v)", label, o.Err)
	default:
		return fmt.Sprintf("%s: ERROR: %v", label, o.Err)
	}
}

// StatusLine writes one line per outcome to w.
type StatusLine struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	debug bool
}

func NewStatusLine(w io.Writer, label string) *StatusLine {
	if label == "" {
		label = DefaultLabel
	}
	return &StatusLine{w: w, label: label}
}

func (s *StatusLine) WithDebug(enabled bool) *StatusLine {
	s.debug = enabled
	return s
}

func (s *StatusLine) Report(o domain.ReloadOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.debugf("reporter: recovered from panic: %v", r)
		}
	}()

	line := Format(s.label, o)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		s.debugf("reporter: write status line: %v", err)
	}
	if o.Success() {
		s.debugf("reporter: event=%s url=%s status=%d duration=%s", o.Event.ID, o.URL, o.StatusCode, o.Duration)
	}
}

func (s *StatusLine) debugf(format string, args ...any) {
	if s.debug {
		log.Printf(format, args...)
	}
}

// Multi fans an outcome out to several reporters. A panic in one reporter
// does not stop the others.
type Multi []Reporter

func (m Multi) Report(o domain.ReloadOutcome) {
	for _, r := range m {
		if r == nil {
			continue
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					log.Printf("reporter: %T panicked: %v", r, p)
				}
			}()
			r.Report(o)
		}()
	}
}
