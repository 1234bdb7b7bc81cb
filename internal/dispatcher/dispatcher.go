// Package dispatcher sends the hot-reload command to a resolved port.
package dispatcher

import (
	"context"
	"errors"
	"log"
	"net"
	"syscall"
	"time"

	"github.com/djlord-it/devtrigger/internal/domain"
	"github.com/djlord-it/devtrigger/internal/metrics"
)

// DefaultTimeout bounds a command request when none is configured.
const DefaultTimeout = 5 * time.Second

type CommandSender interface {
	Send(ctx context.Context, req CommandRequest) CommandResult
}

// Breaker is consulted before each request. Optional.
type Breaker interface {
	Allow(target string) error
	RecordSuccess(target string)
	RecordFailure(target string)
}

// MetricsSink records dispatcher metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DispatchCompleted(statusClass string, duration time.Duration)
}

type CommandRequest struct {
	URL     string
	Timeout time.Duration
}

type CommandResult struct {
	StatusCode int
	Error      error
	Duration   time.Duration
}

func (r CommandResult) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type Dispatcher struct {
	sender  CommandSender
	urlFor  func(port int) string
	timeout time.Duration
	breaker Breaker     // optional, nil = disabled
	metrics MetricsSink // optional, nil = disabled
}

// New returns a dispatcher that posts to urlFor(port) with the given timeout.
func New(sender CommandSender, urlFor func(port int) string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		sender:  sender,
		urlFor:  urlFor,
		timeout: timeout,
	}
}

func (d *Dispatcher) WithBreaker(b Breaker) *Dispatcher {
	d.breaker = b
	return d
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// URL returns the command URL for port.
func (d *Dispatcher) URL(port int) string {
	return d.urlFor(port)
}

// Dispatch sends one command request to port. It never retries. On success it
// returns the 2xx status code; otherwise a *domain.DispatchError.
func (d *Dispatcher) Dispatch(ctx context.Context, port int) (int, error) {
	url := d.urlFor(port)

	if d.breaker != nil {
		if err := d.breaker.Allow(url); err != nil {
			log.Printf("dispatcher: circuit open url=%s", url)
			derr := &domain.DispatchError{Kind: domain.DispatchCircuitOpen, URL: url, Err: err}
			d.record(0, derr, 0)
			return 0, derr
		}
	}

	result := d.sender.Send(ctx, CommandRequest{URL: url, Timeout: d.timeout})

	if result.IsSuccess() {
		log.Printf("dispatcher: url=%s status=%d duration=%s", url, result.StatusCode, result.Duration)
		if d.breaker != nil {
			d.breaker.RecordSuccess(url)
		}
		d.record(result.StatusCode, nil, result.Duration)
		return result.StatusCode, nil
	}

	derr := classify(url, result)
	log.Printf("dispatcher: url=%s failed kind=%s duration=%s err=%v", url, derr.Kind, result.Duration, derr)
	if d.breaker != nil {
		d.breaker.RecordFailure(url)
	}
	d.record(result.StatusCode, derr, result.Duration)
	return result.StatusCode, derr
}

func (d *Dispatcher) record(statusCode int, err error, duration time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.DispatchCompleted(metrics.ClassifyStatus(statusCode, err), duration)
}

// classify maps a failed result onto the dispatch error taxonomy.
func classify(url string, r CommandResult) *domain.DispatchError {
	if r.Error == nil {
		return &domain.DispatchError{Kind: domain.DispatchNonSuccessStatus, URL: url, StatusCode: r.StatusCode}
	}

	if errors.Is(r.Error, syscall.ECONNREFUSED) {
		return &domain.DispatchError{Kind: domain.DispatchConnectionRefused, URL: url, Err: r.Error}
	}
	if errors.Is(r.Error, context.DeadlineExceeded) {
		return &domain.DispatchError{Kind: domain.DispatchTimeout, URL: url, Err: r.Error}
	}
	var ne net.Error
	if errors.As(r.Error, &ne) && ne.Timeout() {
		return &domain.DispatchError{Kind: domain.DispatchTimeout, URL: url, Err: r.Error}
	}
	return &domain.DispatchError{Kind: domain.DispatchTransportError, URL: url, Err: r.Error}
}
