package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg), reg
}

func TestPrometheusSink_RequestHandled(t *testing.T) {
	s, _ := newTestSink(t)

	s.RequestHandled("deposit", OutcomeSuccess, 10*time.Millisecond)
	s.RequestHandled("deposit", OutcomeSuccess, 20*time.Millisecond)
	s.RequestHandled("deposit", OutcomeValidation, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.requestsTotal.WithLabelValues("deposit", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.requestsTotal.WithLabelValues("deposit", OutcomeValidation)))
}

func TestPrometheusSink_EngineCounters(t *testing.T) {
	s, _ := newTestSink(t)

	s.EventAppended("execution_completed")
	s.EventAppended("execution_completed")
	s.ExecutionSkipped("price_threshold_exceeded")
	s.ResumeHandled("after_swap", OutcomeSuccess)
	s.EscrowDisbursed(OutcomeSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.eventsTotal.WithLabelValues("execution_completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.skipsTotal.WithLabelValues("price_threshold_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.resumesTotal.WithLabelValues("after_swap", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.disbursalsTotal.WithLabelValues(OutcomeSuccess)))
}

func TestPrometheusSink_DispatcherMetrics(t *testing.T) {
	s, _ := newTestSink(t)

	s.CallExecuted("send", OutcomeSuccess, time.Millisecond)
	s.CallExecuted("swap", OutcomeFailed, time.Millisecond)
	s.QueueDepthUpdate(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.callsTotal.WithLabelValues("send", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.callsTotal.WithLabelValues("swap", OutcomeFailed)))
	assert.Equal(t, 7.0, testutil.ToFloat64(s.queueDepth))
}

func TestPrometheusSink_TickCompleted(t *testing.T) {
	s, _ := newTestSink(t)

	s.TickCompleted(time.Second, 3, nil)
	s.TickCompleted(time.Second, 0, errors.New("store unavailable"))

	assert.Equal(t, 2.0, testutil.ToFloat64(s.ticksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.tickErrorsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.tickEnqueued))
}

func TestPrometheusSink_DuplicateRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPrometheusSink(reg)
	second := NewPrometheusSink(reg)

	second.EventAppended("cancelled")
	first.EventAppended("cancelled")

	count, err := testutil.GatherAndCount(reg, "bounties_engine_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusSink_NilRegisterer(t *testing.T) {
	s := NewPrometheusSink(nil)
	s.RequestHandled("cancel_vault", OutcomeSuccess, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.requestsTotal.WithLabelValues("cancel_vault", OutcomeSuccess)))
}

var _ Sink = (*PrometheusSink)(nil)
