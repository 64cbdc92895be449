package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.RequestHandled("create_vault", OutcomeSuccess, time.Millisecond)
	s.ResumeHandled("after_swap", OutcomeFailed)
	s.EventAppended("execution_completed")
	s.ExecutionSkipped("slippage_tolerance_exceeded")
	s.EscrowDisbursed(OutcomeSuccess)
	s.CallExecuted("swap", OutcomeSuccess, time.Millisecond)
	s.QueueDepthUpdate(3)
	s.TickCompleted(time.Second, 2, errors.New("boom"))
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)
