// Package trigger turns trigger events into hot-reload commands. Handle gates
// events synchronously; a bounded worker pool runs discovery and dispatch and a
// single reporter loop publishes every outcome.
package trigger

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/djlord-it/devtrigger/internal/domain"
	"github.com/djlord-it/devtrigger/internal/metrics"
	"github.com/djlord-it/devtrigger/internal/transport/channel"
)

// Decision describes what Handle did with an event before any I/O.
type Decision string

const (
	DecisionSkippedNoPath    Decision = "skipped_no_path"
	DecisionSkippedDisabled  Decision = "skipped_disabled"
	DecisionDebounced        Decision = "debounced"
	DecisionQueued           Decision = "queued"
	DecisionDroppedQueueFull Decision = "dropped_queue_full"
)

// enableCheckTimeout bounds reading the enable condition inside Handle.
const enableCheckTimeout = 250 * time.Millisecond

// DefaultDrainTimeout is the maximum time to work through queued events during shutdown.
const DefaultDrainTimeout = 10 * time.Second

type Resolver interface {
	Resolve(ctx context.Context, pattern string) (int, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, port int) (int, error)
	URL(port int) string
}

// EnableCondition is read on every event and never cached.
type EnableCondition interface {
	Enabled(ctx context.Context) (bool, error)
}

type Reporter interface {
	Report(outcome domain.ReloadOutcome)
}

// MetricsSink records watcher metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TriggerReceived(source string)
	TriggerSkipped(reason string)
	OutcomeReported(outcome string)
	InFlightIncr()
	InFlightDecr()
}

type Config struct {
	Pattern        string
	Workers        int
	DrainTimeout   time.Duration
	DebounceWindow time.Duration
}

type Watcher struct {
	config     Config
	resolver   Resolver
	dispatcher Dispatcher
	enable     EnableCondition
	reporter   Reporter
	queue      *channel.EventBus
	outcomes   chan domain.ReloadOutcome
	metrics    MetricsSink // optional, nil = disabled
	debug      bool

	mu           sync.Mutex
	pending      *time.Timer
	pendingEvent domain.TriggerEvent
	pendingSeq   uint64
}

func New(config Config, resolver Resolver, dispatcher Dispatcher, enable EnableCondition, reporter Reporter, queue *channel.EventBus) *Watcher {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	return &Watcher{
		config:     config,
		resolver:   resolver,
		dispatcher: dispatcher,
		enable:     enable,
		reporter:   reporter,
		queue:      queue,
		outcomes:   make(chan domain.ReloadOutcome, config.Workers),
	}
}

// WithMetrics attaches a metrics sink to the watcher.
func (w *Watcher) WithMetrics(sink MetricsSink) *Watcher {
	w.metrics = sink
	return w
}

func (w *Watcher) WithDebug(enabled bool) *Watcher {
	w.debug = enabled
	return w
}

// Handle gates an event and hands it to the worker pool. It never waits on
// process discovery or the network.
func (w *Watcher) Handle(event domain.TriggerEvent) Decision {
	if w.metrics != nil {
		w.metrics.TriggerReceived(string(event.Source))
	}

	if !event.HasPath() {
		w.debugf("watcher: event=%s source=%s has no path, skipping", event.ID, event.Source)
		w.skipped(metrics.SkipNoPath)
		return DecisionSkippedNoPath
	}

	if !w.enabled() {
		w.skipped(metrics.SkipDisabled)
		return DecisionSkippedDisabled
	}

	if w.config.DebounceWindow > 0 {
		w.hold(event)
		return DecisionDebounced
	}
	return w.enqueue(event)
}

func (w *Watcher) enabled() bool {
	ctx, cancel := context.WithTimeout(context.Background(), enableCheckTimeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := w.enable.Enabled(ctx)
		done <- result{ok: ok, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			log.Printf("watcher: read enable condition: %v", r.err)
			return false
		}
		return r.ok
	case <-ctx.Done():
		log.Printf("watcher: read enable condition: timed out after %s", enableCheckTimeout)
		return false
	}
}

// hold keeps the latest event of a burst and queues it once the burst has
// been quiet for the debounce window.
func (w *Watcher) hold(event domain.TriggerEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
		w.debugf("watcher: event=%s coalesced into event=%s", w.pendingEvent.ID, event.ID)
		w.skipped(metrics.SkipDebounced)
	}
	w.pendingSeq++
	seq := w.pendingSeq
	w.pendingEvent = event
	w.pending = time.AfterFunc(w.config.DebounceWindow, func() {
		w.flushPending(seq)
	})
}

func (w *Watcher) flushPending(seq uint64) {
	w.mu.Lock()
	if seq != w.pendingSeq || w.pending == nil {
		w.mu.Unlock()
		return
	}
	event := w.pendingEvent
	w.pending = nil
	w.mu.Unlock()

	w.enqueue(event)
}

// flushOnShutdown queues a debounced event that is still waiting, so it is
// drained and reported like any other accepted event.
func (w *Watcher) flushOnShutdown() {
	w.mu.Lock()
	if w.pending == nil {
		w.mu.Unlock()
		return
	}
	w.pending.Stop()
	w.pending = nil
	w.pendingSeq++
	event := w.pendingEvent
	w.mu.Unlock()

	w.debugf("watcher: shutdown flushing debounced event=%s", event.ID)
	w.enqueue(event)
}

// stopPending cancels a debounce timer started after the drain began.
func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
		w.pendingSeq++
		log.Printf("watcher: shutdown dropped debounced event=%s", w.pendingEvent.ID)
	}
}

func (w *Watcher) enqueue(event domain.TriggerEvent) Decision {
	err := w.queue.TryEmit(event)
	if err == nil {
		w.debugf("watcher: event=%s source=%s path=%s queued", event.ID, event.Source, event.Path)
		return DecisionQueued
	}

	log.Printf("watcher: event=%s dropped: %v", event.ID, err)
	cause := domain.ErrQueueFull
	if errors.Is(err, channel.ErrClosed) {
		cause = err
	}
	outcome := domain.ReloadOutcome{Event: event, Err: cause, FinishedAt: time.Now().UTC()}
	select {
	case w.outcomes <- outcome:
	default:
		go w.deliver(outcome)
	}
	return DecisionDroppedQueueFull
}

// Run starts the worker pool and the reporter loop and blocks until ctx is
// cancelled and queued events have been drained.
func (w *Watcher) Run(ctx context.Context) {
	log.Printf("watcher: started, workers=%d pattern=%q debounce=%s", w.config.Workers, w.config.Pattern, w.config.DebounceWindow)

	workersDone := make(chan struct{})
	reporterDone := make(chan struct{})
	go func() {
		w.reportLoop(workersDone)
		close(reporterDone)
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.work(ctx)
		}()
	}
	wg.Wait()
	w.stopPending()
	close(workersDone)
	<-reporterDone

	log.Println("watcher: stopped")
}

func (w *Watcher) work(ctx context.Context) {
	// In-flight units are not cancelled by shutdown; their own timeouts bound them.
	workCtx := context.WithoutCancel(ctx)
	ch := w.queue.Channel()
	for {
		select {
		case <-ctx.Done():
			w.flushOnShutdown()
			w.drain(ch)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			w.outcomes <- w.execute(workCtx, event)
		}
	}
}

// drain processes remaining events in the queue after shutdown signal.
func (w *Watcher) drain(ch <-chan domain.TriggerEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), w.config.DrainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("watcher: drain timeout, processed %d events", count)
			}
			return
		case event, ok := <-ch:
			if !ok {
				if count > 0 {
					log.Printf("watcher: drain complete, processed %d events", count)
				}
				return
			}
			w.outcomes <- w.execute(drainCtx, event)
			count++
		default:
			if count > 0 {
				log.Printf("watcher: drain complete, processed %d events", count)
			}
			return
		}
	}
}

func (w *Watcher) reportLoop(workersDone <-chan struct{}) {
	for {
		select {
		case o := <-w.outcomes:
			w.deliver(o)
		case <-workersDone:
			for {
				select {
				case o := <-w.outcomes:
					w.deliver(o)
				default:
					return
				}
			}
		}
	}
}

func (w *Watcher) deliver(o domain.ReloadOutcome) {
	if w.metrics != nil {
		w.metrics.OutcomeReported(string(o.Class()))
	}
	w.reporter.Report(o)
}

// RunOnce runs discovery and dispatch for one event synchronously. It does not
// consult the enable condition and does not report the outcome.
func (w *Watcher) RunOnce(ctx context.Context, event domain.TriggerEvent) domain.ReloadOutcome {
	return w.execute(ctx, event)
}

func (w *Watcher) execute(ctx context.Context, event domain.TriggerEvent) domain.ReloadOutcome {
	if w.metrics != nil {
		w.metrics.InFlightIncr()
		defer w.metrics.InFlightDecr()
	}
	start := time.Now()
	outcome := domain.ReloadOutcome{Event: event}

	port, err := w.resolver.Resolve(ctx, w.config.Pattern)
	if err != nil {
		outcome.Err = err
	} else {
		outcome.Port = port
		outcome.URL = w.dispatcher.URL(port)
		outcome.StatusCode, outcome.Err = w.dispatcher.Dispatch(ctx, port)
	}

	outcome.Duration = time.Since(start)
	outcome.FinishedAt = time.Now().UTC()
	log.Printf("watcher: event=%s source=%s outcome=%s port=%d duration=%s", event.ID, event.Source, outcome.Class(), outcome.Port, outcome.Duration)
	return outcome
}

func (w *Watcher) skipped(reason string) {
	if w.metrics != nil {
		w.metrics.TriggerSkipped(reason)
	}
}

func (w *Watcher) debugf(format string, args ...any) {
	if w.debug {
		log.Printf(format, args...)
	}
}
