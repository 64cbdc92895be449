package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RequestHandled(request string, outcome string, duration time.Duration) {}
func (n *NoopSink) ResumeHandled(replyID string, outcome string)                          {}
func (n *NoopSink) EventAppended(kind string)                                             {}
func (n *NoopSink) ExecutionSkipped(reason string)                                        {}
func (n *NoopSink) EscrowDisbursed(outcome string)                                        {}
func (n *NoopSink) CallExecuted(kind string, outcome string, duration time.Duration)      {}
func (n *NoopSink) QueueDepthUpdate(depth int)                                            {}
func (n *NoopSink) TickCompleted(duration time.Duration, enqueued int, err error)         {}
