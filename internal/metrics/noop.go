package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TriggerReceived(source string)                                {}
func (n *NoopSink) TriggerSkipped(reason string)                                 {}
func (n *NoopSink) OutcomeReported(outcome string)                               {}
func (n *NoopSink) InFlightIncr()                                                {}
func (n *NoopSink) InFlightDecr()                                                {}
func (n *NoopSink) DiscoveryCompleted(result string, duration time.Duration)     {}
func (n *NoopSink) DispatchCompleted(statusClass string, duration time.Duration) {}
func (n *NoopSink) BufferSizeUpdate(size int)                                    {}
func (n *NoopSink) BufferCapacitySet(capacity int)                               {}
func (n *NoopSink) EmitError()                                                   {}
