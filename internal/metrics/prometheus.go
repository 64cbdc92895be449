package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Engine metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	resumesTotal    *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
	skipsTotal      *prometheus.CounterVec
	disbursalsTotal *prometheus.CounterVec

	// Dispatcher metrics
	callsTotal   *prometheus.CounterVec
	callDuration prometheus.Histogram
	queueDepth   prometheus.Gauge

	// Keeper metrics
	ticksTotal      prometheus.Counter
	tickErrorsTotal prometheus.Counter
	tickEnqueued    prometheus.Counter
	tickDuration    prometheus.Histogram
}

// NewPrometheusSink creates a new Prometheus metrics sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initEngineMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initKeeperMetrics(reg)
	return s
}

func (s *PrometheusSink) initEngineMetrics(reg prometheus.Registerer) {
	s.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bounties_engine_requests_total",
		Help: "Total number of inbound requests handled, by request and outcome.",
	}, []string{"request", "outcome"})
	s.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bounties_engine_request_duration_seconds",
		Help:    "Duration of inbound request handling in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"request"})
	s.resumesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bounties_engine_resumes_total",
		Help: "Total number of continuation resumes handled, by reply id and outcome.",
	}, []string{"reply_id", "outcome"})
	s.eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bounties_engine_events_total",
		Help: "Total number of events appended to the log, by kind.",
	}, []string{"kind"})
	s.skipsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bounties_engine_execution_skips_total",
		Help: "Total number of skipped executions, by reason.",
	}, []string{"reason"})
	s.disbursalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bounties_engine_escrow_disbursals_total",
		Help: "Total number of escrow disbursals, by outcome.",
	}, []string{"outcome"})

	s.register(reg, s.requestsTotal, "bounties_engine_requests_total")
	s.register(reg, s.requestDuration, "bounties_engine_request_duration_seconds")
	s.register(reg, s.resumesTotal, "bounties_engine_resumes_total")
	s.register(reg, s.eventsTotal, "bounties_engine_events_total")
	s.register(reg, s.skipsTotal, "bounties_engine_execution_skips_total")
	s.register(reg, s.disbursalsTotal, "bounties_engine_escrow_disbursals_total")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.callsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bounties_dispatcher_calls_total",
		Help: "Total number of outbound calls executed, by message kind and outcome.",
	}, []string{"kind", "outcome"})
	s.callDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bounties_dispatcher_call_duration_seconds",
		Help:    "Duration of outbound calls in seconds.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
	})
	s.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bounties_dispatcher_queue_depth",
		Help: "Number of requests waiting in the dispatcher queue.",
	})

	s.register(reg, s.callsTotal, "bounties_dispatcher_calls_total")
	s.register(reg, s.callDuration, "bounties_dispatcher_call_duration_seconds")
	s.register(reg, s.queueDepth, "bounties_dispatcher_queue_depth")
}

func (s *PrometheusSink) initKeeperMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bounties_keeper_ticks_total",
		Help: "Total number of keeper ticks processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bounties_keeper_tick_errors_total",
		Help: "Total number of keeper tick errors.",
	})
	s.tickEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bounties_keeper_requests_enqueued_total",
		Help: "Total number of requests enqueued by the keeper.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bounties_keeper_tick_duration_seconds",
		Help:    "Duration of each keeper tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	s.register(reg, s.ticksTotal, "bounties_keeper_ticks_total")
	s.register(reg, s.tickErrorsTotal, "bounties_keeper_tick_errors_total")
	s.register(reg, s.tickEnqueued, "bounties_keeper_requests_enqueued_total")
	s.register(reg, s.tickDuration, "bounties_keeper_tick_duration_seconds")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if reg == nil {
		return
	}
	if err := reg.Register(c); err != nil {
		slog.Warn("metrics: failed to register collector", "name", name, "error", err)
	}
}

// Engine metrics implementation

func (s *PrometheusSink) RequestHandled(request string, outcome string, duration time.Duration) {
	s.requestsTotal.WithLabelValues(request, outcome).Inc()
	s.requestDuration.WithLabelValues(request).Observe(duration.Seconds())
}

func (s *PrometheusSink) ResumeHandled(replyID string, outcome string) {
	s.resumesTotal.WithLabelValues(replyID, outcome).Inc()
}

func (s *PrometheusSink) EventAppended(kind string) {
	s.eventsTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) ExecutionSkipped(reason string) {
	s.skipsTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) EscrowDisbursed(outcome string) {
	s.disbursalsTotal.WithLabelValues(outcome).Inc()
}

// Dispatcher metrics implementation

func (s *PrometheusSink) CallExecuted(kind string, outcome string, duration time.Duration) {
	s.callsTotal.WithLabelValues(kind, outcome).Inc()
	s.callDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) QueueDepthUpdate(depth int) {
	s.queueDepth.Set(float64(depth))
}

// Keeper metrics implementation

func (s *PrometheusSink) TickCompleted(duration time.Duration, enqueued int, err error) {
	s.ticksTotal.Inc()
	s.tickDuration.Observe(duration.Seconds())
	s.tickEnqueued.Add(float64(enqueued))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}
