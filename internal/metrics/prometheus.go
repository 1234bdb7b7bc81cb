package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Trigger watcher metrics
	triggersTotal *prometheus.CounterVec
	skippedTotal  *prometheus.CounterVec
	outcomesTotal *prometheus.CounterVec
	inFlight      prometheus.Gauge

	// Resolver metrics
	discoveriesTotal  *prometheus.CounterVec
	discoveryDuration prometheus.Histogram

	// Dispatcher metrics
	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration prometheus.Histogram

	// EventBus metrics
	bufferSize      prometheus.Gauge
	bufferCapacity  prometheus.Gauge
	emitErrorsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initTriggerMetrics(reg)
	s.initResolverMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initEventBusMetrics(reg)
	return s
}

func (s *PrometheusSink) initTriggerMetrics(reg prometheus.Registerer) {
	s.triggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devtrigger_triggers_total",
		Help: "Total number of trigger events received, by source.",
	}, []string{"source"})
	s.skippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devtrigger_triggers_skipped_total",
		Help: "Trigger events that did not start a reload, by reason.",
	}, []string{"reason"})
	s.outcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devtrigger_outcomes_total",
		Help: "Reported reload outcomes, by class.",
	}, []string{"outcome"})
	s.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devtrigger_reloads_in_flight",
		Help: "Number of discovery+dispatch sequences currently running.",
	})

	s.register(reg, s.triggersTotal, "devtrigger_triggers_total")
	s.register(reg, s.skippedTotal, "devtrigger_triggers_skipped_total")
	s.register(reg, s.outcomesTotal, "devtrigger_outcomes_total")
	s.register(reg, s.inFlight, "devtrigger_reloads_in_flight")
}

func (s *PrometheusSink) initResolverMetrics(reg prometheus.Registerer) {
	s.discoveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devtrigger_resolver_discoveries_total",
		Help: "Port discovery attempts, by result.",
	}, []string{"result"})
	s.discoveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "devtrigger_resolver_duration_seconds",
		Help:    "Time spent enumerating processes and sockets.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	s.register(reg, s.discoveriesTotal, "devtrigger_resolver_discoveries_total")
	s.register(reg, s.discoveryDuration, "devtrigger_resolver_duration_seconds")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.dispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devtrigger_dispatcher_requests_total",
		Help: "Command requests sent to the target, by status class.",
	}, []string{"status_class"})
	s.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "devtrigger_dispatcher_duration_seconds",
		Help:    "Command request latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	s.register(reg, s.dispatchesTotal, "devtrigger_dispatcher_requests_total")
	s.register(reg, s.dispatchDuration, "devtrigger_dispatcher_duration_seconds")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devtrigger_queue_size",
		Help: "Current number of events waiting for a worker.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devtrigger_queue_capacity",
		Help: "Capacity of the trigger queue.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devtrigger_queue_emit_errors_total",
		Help: "Total number of events dropped because the queue was full.",
	})

	s.register(reg, s.bufferSize, "devtrigger_queue_size")
	s.register(reg, s.bufferCapacity, "devtrigger_queue_capacity")
	s.register(reg, s.emitErrorsTotal, "devtrigger_queue_emit_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) TriggerReceived(source string) {
	s.triggersTotal.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) TriggerSkipped(reason string) {
	s.skippedTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) OutcomeReported(outcome string) {
	s.outcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) InFlightIncr() {
	s.inFlight.Inc()
}

func (s *PrometheusSink) InFlightDecr() {
	s.inFlight.Dec()
}

func (s *PrometheusSink) DiscoveryCompleted(result string, duration time.Duration) {
	s.discoveriesTotal.WithLabelValues(result).Inc()
	s.discoveryDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DispatchCompleted(statusClass string, duration time.Duration) {
	s.dispatchesTotal.WithLabelValues(statusClass).Inc()
	s.dispatchDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}
