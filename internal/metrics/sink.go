package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Engine metrics
	RequestHandled(request string, outcome string, duration time.Duration)
	ResumeHandled(replyID string, outcome string)
	EventAppended(kind string)
	ExecutionSkipped(reason string)
	EscrowDisbursed(outcome string)

	// Dispatcher metrics
	CallExecuted(kind string, outcome string, duration time.Duration)
	QueueDepthUpdate(depth int)

	// Keeper metrics
	TickCompleted(duration time.Duration, enqueued int, err error)
}

// Outcome labels shared by request, resume and call metrics.
const (
	OutcomeSuccess      = "success"
	OutcomeFailed       = "failed"
	OutcomeValidation   = "validation"
	OutcomePrecondition = "precondition"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeFatal        = "fatal"
)
