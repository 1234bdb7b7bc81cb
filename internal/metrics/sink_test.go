package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/djlord-it/devtrigger/internal/domain"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		want       string
	}{
		// Success codes
		{"200 OK", 200, nil, StatusClass2xx},
		{"204 No Content", 204, nil, StatusClass2xx},
		{"299 boundary", 299, nil, StatusClass2xx},

		// Status codes
		{"404 Not Found", 404, nil, StatusClass4xx},
		{"500 Internal Server Error", 500, nil, StatusClass5xx},
		{"302 redirect", 302, nil, StatusClassOtherError},

		// Typed dispatch errors
		{"typed timeout", 0, &domain.DispatchError{Kind: domain.DispatchTimeout}, StatusClassTimeout},
		{"typed refused", 0, &domain.DispatchError{Kind: domain.DispatchConnectionRefused}, StatusClassConnectionError},
		{"typed circuit", 0, &domain.DispatchError{Kind: domain.DispatchCircuitOpen}, StatusClassCircuitOpen},
		{"typed 503", 0, &domain.DispatchError{Kind: domain.DispatchNonSuccessStatus, StatusCode: 503}, StatusClass5xx},
		{"wrapped typed 404", 0, fmt.Errorf("dispatch: %w", &domain.DispatchError{Kind: domain.DispatchNonSuccessStatus, StatusCode: 404}), StatusClass4xx},

		// Untyped errors fall back to message inspection
		{"context timeout", 0, errors.New("context deadline exceeded"), StatusClassTimeout},
		{"Timeout uppercase", 0, errors.New("Timeout exceeded"), StatusClassTimeout},
		{"connection refused", 0, errors.New("connection refused"), StatusClassConnectionError},
		{"dial error", 0, errors.New("dial tcp 127.0.0.1:80: connect: refused"), StatusClassConnectionError},
		{"generic error", 0, errors.New("unknown error"), StatusClassOtherError},
		{"empty error", 0, errors.New(""), StatusClassOtherError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStatus(tt.statusCode, tt.err)
			if got != tt.want {
				t.Errorf("ClassifyStatus(%d, %v) = %q, want %q", tt.statusCode, tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyDiscovery(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"found", nil, DiscoveryResultFound},
		{"not found", &domain.DiscoveryError{Kind: domain.DiscoveryProcessNotFound}, "process_not_found"},
		{"no port", &domain.DiscoveryError{Kind: domain.DiscoveryNoListeningPort}, "no_listening_port"},
		{"timeout", fmt.Errorf("resolve: %w", &domain.DiscoveryError{Kind: domain.DiscoveryTimeout}), "timeout"},
		{"untyped", errors.New("boom"), "tool_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDiscovery(tt.err); got != tt.want {
				t.Errorf("ClassifyDiscovery(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
