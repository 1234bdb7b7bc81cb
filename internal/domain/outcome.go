package domain

import (
	"errors"
	"time"
)

// ReloadOutcome is the result of one discovery+dispatch sequence.
// Err == nil means Success(StatusCode); otherwise Failure(Err).
type ReloadOutcome struct {
	Event TriggerEvent

	Port       int    // 0 when discovery failed
	URL        string // empty when discovery failed
	StatusCode int    // 0 when no response was received

	Err error

	Duration   time.Duration
	FinishedAt time.Time
}

func (o ReloadOutcome) Success() bool {
	return o.Err == nil
}

// OutcomeClass is a bounded label for an outcome, used by metrics and analytics.
type OutcomeClass string

const (
	OutcomeSuccess        OutcomeClass = "success"
	OutcomeDiscoveryError OutcomeClass = "discovery_error"
	OutcomeDispatchError  OutcomeClass = "dispatch_error"
	OutcomeDropped        OutcomeClass = "dropped"
	OutcomeOtherError     OutcomeClass = "other_error"
)

// ErrQueueFull marks an event that was accepted but could not be queued for work.
var ErrQueueFull = errors.New("trigger queue full")

func (o ReloadOutcome) Class() OutcomeClass {
	if o.Err == nil {
		return OutcomeSuccess
	}
	var de *DiscoveryError
	if errors.As(o.Err, &de) {
		return OutcomeDiscoveryError
	}
	var pe *DispatchError
	if errors.As(o.Err, &pe) {
		return OutcomeDispatchError
	}
	if errors.Is(o.Err, ErrQueueFull) {
		return OutcomeDropped
	}
	return OutcomeOtherError
}
