package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/devtrigger/internal/circuitbreaker"
	"github.com/djlord-it/devtrigger/internal/domain"
	"github.com/djlord-it/devtrigger/internal/metrics"
)

func localURL(port int) string {
	return fmt.Sprintf("http://localhost:%d/command/hot-reload", port)
}

func loopbackURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/command/hot-reload", port)
}

// mockSender returns canned results and records the requests it saw.
type mockSender struct {
	mu       sync.Mutex
	results  []CommandResult
	requests []CommandRequest
}

func (s *mockSender) Send(ctx context.Context, req CommandRequest) CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.results) == 0 {
		return CommandResult{StatusCode: 200}
	}
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r
}

func (s *mockSender) getRequests() []CommandRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CommandRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

type mockMetrics struct {
	mu      sync.Mutex
	classes []string
}

func (m *mockMetrics) DispatchCompleted(statusClass string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes = append(m.classes, statusClass)
}

func (m *mockMetrics) getClasses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.classes...)
}

// roundTripFunc lets a test stand in for the network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func serverPort(t *testing.T, s *httptest.Server) int {
	t.Helper()
	return s.Listener.Addr().(*net.TCPAddr).Port
}

func TestDispatch_InjectedTransport_Success(t *testing.T) {
	var mu sync.Mutex
	var gotURL, gotMethod string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		gotURL = r.URL.String()
		gotMethod = r.Method
		mu.Unlock()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})}

	d := New(NewHTTPCommandSender().WithClient(client), localURL, time.Second)
	code, err := d.Dispatch(context.Background(), 8001)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 200 {
		t.Errorf("code = %d, want 200", code)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotURL != "http://localhost:8001/command/hot-reload" {
		t.Errorf("url = %q", gotURL)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
}

func TestDispatch_RealServer_Success(t *testing.T) {
	var hits int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		if r.URL.Path != "/command/hot-reload" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d := New(NewHTTPCommandSender(), loopbackURL, time.Second)
	code, err := d.Dispatch(context.Background(), serverPort(t, server))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != http.StatusAccepted {
		t.Errorf("code = %d, want 202", code)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("hits = %d, want exactly 1 (no retry)", hits)
	}
}

func TestDispatch_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := New(NewHTTPCommandSender(), loopbackURL, time.Second)
	code, err := d.Dispatch(context.Background(), serverPort(t, server))

	if !domain.IsDispatchKind(err, domain.DispatchNonSuccessStatus) {
		t.Fatalf("expected non_success_status, got %v", err)
	}
	var de *domain.DispatchError
	errors.As(err, &de)
	if de.StatusCode != 503 || code != 503 {
		t.Errorf("status = %d/%d, want 503", de.StatusCode, code)
	}
}

func TestDispatch_Timeout_WithinBound(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	timeout := 100 * time.Millisecond
	d := New(NewHTTPCommandSender(), loopbackURL, timeout)

	start := time.Now()
	_, err := d.Dispatch(context.Background(), serverPort(t, server))
	elapsed := time.Since(start)

	if !domain.IsDispatchKind(err, domain.DispatchTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed > timeout+time.Second {
		t.Errorf("dispatch took %v, bound was %v", elapsed, timeout)
	}
}

func TestDispatch_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := New(NewHTTPCommandSender(), loopbackURL, time.Second)
	_, err = d.Dispatch(context.Background(), port)

	if !domain.IsDispatchKind(err, domain.DispatchConnectionRefused) {
		t.Fatalf("expected connection_refused, got %v", err)
	}
}

func TestDispatch_TransportError(t *testing.T) {
	sender := &mockSender{results: []CommandResult{{Error: errors.New("send: malformed HTTP response")}}}
	d := New(sender, localURL, time.Second)

	_, err := d.Dispatch(context.Background(), 8001)

	if !domain.IsDispatchKind(err, domain.DispatchTransportError) {
		t.Fatalf("expected transport_error, got %v", err)
	}
	if !strings.Contains(err.Error(), "malformed HTTP response") {
		t.Errorf("error should carry detail: %v", err)
	}
}

func TestDispatch_PassesURLAndTimeout(t *testing.T) {
	sender := &mockSender{}
	d := New(sender, localURL, 750*time.Millisecond)

	d.Dispatch(context.Background(), 8123)

	reqs := sender.getRequests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].URL != "http://localhost:8123/command/hot-reload" {
		t.Errorf("URL = %q", reqs[0].URL)
	}
	if reqs[0].Timeout != 750*time.Millisecond {
		t.Errorf("Timeout = %v", reqs[0].Timeout)
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	d := New(&mockSender{}, localURL, 0)
	if d.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", d.timeout, DefaultTimeout)
	}
}

func TestDispatch_Metrics(t *testing.T) {
	sender := &mockSender{results: []CommandResult{
		{StatusCode: 200},
		{StatusCode: 404},
		{Error: context.DeadlineExceeded},
	}}
	m := &mockMetrics{}
	d := New(sender, localURL, time.Second).WithMetrics(m)

	for i := 0; i < 3; i++ {
		d.Dispatch(context.Background(), 8001)
	}

	want := []string{metrics.StatusClass2xx, metrics.StatusClass4xx, metrics.StatusClassTimeout}
	got := m.getClasses()
	if len(got) != len(want) {
		t.Fatalf("classes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("class[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDispatch_CircuitBreaker(t *testing.T) {
	sender := &mockSender{results: []CommandResult{{StatusCode: 500}}}
	m := &mockMetrics{}
	d := New(sender, localURL, time.Second).
		WithBreaker(circuitbreaker.New(2, time.Hour)).
		WithMetrics(m)

	d.Dispatch(context.Background(), 8001)
	d.Dispatch(context.Background(), 8001)
	_, err := d.Dispatch(context.Background(), 8001)

	if !domain.IsDispatchKind(err, domain.DispatchCircuitOpen) {
		t.Fatalf("expected circuit_open, got %v", err)
	}
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Error("circuit_open error should wrap ErrCircuitOpen")
	}
	if n := len(sender.getRequests()); n != 2 {
		t.Errorf("requests = %d, want 2 (third short-circuited)", n)
	}
	classes := m.getClasses()
	if classes[len(classes)-1] != metrics.StatusClassCircuitOpen {
		t.Errorf("last class = %q, want circuit_open", classes[len(classes)-1])
	}

	// A new port is a different target.
	if _, err := d.Dispatch(context.Background(), 8002); domain.IsDispatchKind(err, domain.DispatchCircuitOpen) {
		t.Error("new port should not be short-circuited")
	}
}

func TestClassify(t *testing.T) {
	const url = "http://localhost:1/x"
	tests := []struct {
		name   string
		result CommandResult
		want   domain.DispatchErrorKind
	}{
		{"status", CommandResult{StatusCode: 418}, domain.DispatchNonSuccessStatus},
		{"deadline", CommandResult{Error: fmt.Errorf("send: %w", context.DeadlineExceeded)}, domain.DispatchTimeout},
		{"other", CommandResult{Error: errors.New("boom")}, domain.DispatchTransportError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(url, tt.result); got.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}
