package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/djlord-it/devtrigger/internal/domain"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Trigger watcher metrics
	TriggerReceived(source string)
	TriggerSkipped(reason string)
	OutcomeReported(outcome string)
	InFlightIncr()
	InFlightDecr()

	// Resolver metrics
	DiscoveryCompleted(result string, duration time.Duration)

	// Dispatcher metrics
	DispatchCompleted(statusClass string, duration time.Duration)

	// EventBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

// Skip reasons for TriggerSkipped.
const (
	SkipNoPath    = "no_path"
	SkipDisabled  = "disabled"
	SkipDebounced = "debounced"
)

// DiscoveryResult constants for DiscoveryCompleted. Failure results reuse the
// domain.DiscoveryErrorKind values.
const DiscoveryResultFound = "found"

// StatusClass constants for DispatchCompleted.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassCircuitOpen     = "circuit_open"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a status code and error to a bounded status class.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		var de *domain.DispatchError
		if errors.As(err, &de) {
			switch de.Kind {
			case domain.DispatchTimeout:
				return StatusClassTimeout
			case domain.DispatchConnectionRefused:
				return StatusClassConnectionError
			case domain.DispatchCircuitOpen:
				return StatusClassCircuitOpen
			case domain.DispatchNonSuccessStatus:
				return classifyCode(de.StatusCode)
			}
		}

		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
			return StatusClassTimeout
		}
		if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") ||
			strings.Contains(errStr, "network is unreachable") || strings.Contains(errStr, "dial") {
			return StatusClassConnectionError
		}
		return StatusClassOtherError
	}
	return classifyCode(statusCode)
}

func classifyCode(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}

// ClassifyDiscovery maps a resolver error to a bounded result label.
func ClassifyDiscovery(err error) string {
	if err == nil {
		return DiscoveryResultFound
	}
	var de *domain.DiscoveryError
	if errors.As(err, &de) {
		return string(de.Kind)
	}
	return string(domain.DiscoveryToolFailure)
}
