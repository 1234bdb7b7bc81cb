// Package resolver finds the TCP port a running process is listening on.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/djlord-it/devtrigger/internal/domain"
	"github.com/djlord-it/devtrigger/internal/metrics"
)

// DefaultTimeout bounds a whole discovery when none is configured.
const DefaultTimeout = 5 * time.Second

var ErrUnsupported = errors.New("resolver backend not supported on this platform")

type Process struct {
	PID     int
	Command string
}

// ProcessTable enumerates processes and their listening TCP ports.
// Implementations report tool failures as *domain.DiscoveryError.
type ProcessTable interface {
	Name() string
	Processes(ctx context.Context) ([]Process, error)
	// ListeningPorts returns nil, nil when pid has no LISTEN sockets.
	ListeningPorts(ctx context.Context, pid int) ([]int, error)
}

// MetricsSink records resolver metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DiscoveryCompleted(result string, duration time.Duration)
}

type Resolver struct {
	table   ProcessTable
	timeout time.Duration
	selfPID int
	metrics MetricsSink // optional, nil = disabled
	debug   bool
}

func New(table ProcessTable, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		table:   table,
		timeout: timeout,
		selfPID: os.Getpid(),
	}
}

// WithMetrics attaches a metrics sink to the resolver.
func (r *Resolver) WithMetrics(sink MetricsSink) *Resolver {
	r.metrics = sink
	return r
}

func (r *Resolver) WithDebug(enabled bool) *Resolver {
	r.debug = enabled
	return r
}

type resolveResult struct {
	port int
	err  error
}

// Resolve returns the port of the first matching process (lowest PID) that has
// listening sockets, choosing its lowest port. The whole enumeration is bounded
// by the resolver timeout.
func (r *Resolver) Resolve(ctx context.Context, pattern string) (int, error) {
	start := time.Now()

	ctxTimeout, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan resolveResult, 1)
	go func() {
		port, err := r.find(ctxTimeout, pattern)
		done <- resolveResult{port: port, err: err}
	}()

	var res resolveResult
	select {
	case res = <-done:
	case <-ctxTimeout.Done():
		if errors.Is(ctxTimeout.Err(), context.DeadlineExceeded) {
			res = resolveResult{err: &domain.DiscoveryError{
				Kind:    domain.DiscoveryTimeout,
				Pattern: pattern,
				Err:     ctxTimeout.Err(),
			}}
		} else {
			res = resolveResult{err: fmt.Errorf("port discovery for %q: %w", pattern, ctxTimeout.Err())}
		}
	}

	// A tool killed by the deadline surfaces as a tool failure; report the timeout.
	if res.err != nil && errors.Is(ctxTimeout.Err(), context.DeadlineExceeded) && killedByDeadline(res.err) {
		res.err = &domain.DiscoveryError{Kind: domain.DiscoveryTimeout, Pattern: pattern, Err: res.err}
	}

	if r.metrics != nil {
		r.metrics.DiscoveryCompleted(metrics.ClassifyDiscovery(res.err), time.Since(start))
	}
	if res.err != nil {
		log.Printf("resolver: pattern=%q backend=%s failed: %v", pattern, r.table.Name(), res.err)
		return 0, res.err
	}
	r.debugf("resolver: pattern=%q port=%d duration=%s", pattern, res.port, time.Since(start))
	return res.port, nil
}

// killedByDeadline reports whether err is a tool failure or an untyped error,
// as opposed to a definite answer such as process_not_found.
func killedByDeadline(err error) bool {
	var de *domain.DiscoveryError
	if !errors.As(err, &de) {
		return true
	}
	return de.Kind == domain.DiscoveryToolFailure
}

func (r *Resolver) find(ctx context.Context, pattern string) (int, error) {
	procs, err := r.table.Processes(ctx)
	if err != nil {
		return 0, asToolFailure(r.table.Name(), pattern, err)
	}

	matches := make([]Process, 0, 1)
	for _, p := range procs {
		if p.PID == r.selfPID || p.PID <= 0 {
			continue
		}
		if strings.Contains(p.Command, pattern) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return 0, &domain.DiscoveryError{Kind: domain.DiscoveryProcessNotFound, Pattern: pattern}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].PID < matches[j].PID })

	chosen, chosenPID := 0, 0
	for _, p := range matches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		ports, err := r.table.ListeningPorts(ctx, p.PID)
		if err != nil {
			return 0, asToolFailure(r.table.Name(), pattern, err)
		}
		if len(ports) == 0 {
			r.debugf("resolver: pid=%d has no listening ports", p.PID)
			continue
		}
		sorted := append([]int(nil), ports...)
		sort.Ints(sorted)
		r.debugf("resolver: candidate pid=%d ports=%v", p.PID, sorted)
		if chosen == 0 {
			chosen, chosenPID = sorted[0], p.PID
		}
	}

	if chosen == 0 {
		return 0, &domain.DiscoveryError{Kind: domain.DiscoveryNoListeningPort, Pattern: pattern}
	}
	if len(matches) > 1 {
		log.Printf("resolver: pattern=%q matched %d processes, using pid=%d port=%d", pattern, len(matches), chosenPID, chosen)
	}
	return chosen, nil
}

func asToolFailure(tool, pattern string, err error) error {
	var de *domain.DiscoveryError
	if errors.As(err, &de) {
		if de.Pattern == "" {
			de.Pattern = pattern
		}
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.DiscoveryError{Kind: domain.DiscoveryTimeout, Pattern: pattern, Err: err}
	}
	return &domain.DiscoveryError{
		Kind:    domain.DiscoveryToolFailure,
		Pattern: pattern,
		Tool:    tool,
		Err:     fmt.Errorf("%s: %w", tool, err),
	}
}

func (r *Resolver) debugf(format string, args ...any) {
	if r.debug {
		log.Printf(format, args...)
	}
}
