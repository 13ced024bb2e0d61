package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds the Prometheus metrics of the mutation pipeline, the
// read path and the event publisher. A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	MutationsTotal       *prometheus.CounterVec
	InvalidationFailures prometheus.Counter
	CacheLookups         *prometheus.CounterVec
	PopulateFailures     prometheus.Counter
	PublishAttempts      *prometheus.CounterVec
	PublishFailures      *prometheus.CounterVec
	JournalEvents        prometheus.Counter
	StepSeconds          *prometheus.HistogramVec
	ConsumedEvents       *prometheus.CounterVec
}

// NewPipelineMetrics registers the metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default promhttp handler.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	f := promauto.With(reg)
	return &PipelineMetrics{
		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodhub",
			Subsystem: "pipeline",
			Name:      "mutations_total",
			Help:      "Total number of mutations by name and final state.",
		}, []string{"mutation", "state"}), // state: done, degraded, store_failed
		InvalidationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "foodhub",
			Subsystem: "cache",
			Name:      "invalidation_failures_total",
			Help:      "Total number of failed cache invalidations after a committed mutation.",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodhub",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of read path cache lookups by result.",
		}, []string{"result"}), // result: hit, miss, expired, error
		PopulateFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "foodhub",
			Subsystem: "cache",
			Name:      "populate_failures_total",
			Help:      "Total number of best-effort cache populations that failed.",
		}),
		PublishAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodhub",
			Subsystem: "publish",
			Name:      "attempts_total",
			Help:      "Total number of broker publish attempts by result.",
		}, []string{"result"}), // result: ok, error
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodhub",
			Subsystem: "publish",
			Name:      "failures_total",
			Help:      "Total number of events whose publish was abandoned, by error kind.",
		}, []string{"kind"}),
		JournalEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: "foodhub",
			Subsystem: "journal",
			Name:      "events_total",
			Help:      "Total number of events written to the failed-event journal.",
		}),
		StepSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foodhub",
			Subsystem: "pipeline",
			Name:      "step_seconds",
			Help:      "Duration of each pipeline step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}), // step: store, cache, publish
		ConsumedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodhub",
			Subsystem: "notifier",
			Name:      "events_total",
			Help:      "Total number of consumed events by outcome.",
		}, []string{"outcome"}), // outcome: delivered, stale
	}
}

func (m *PipelineMetrics) Mutation(name, state string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(name, state).Inc()
}

func (m *PipelineMetrics) InvalidationFailed() {
	if m == nil {
		return
	}
	m.InvalidationFailures.Inc()
}

func (m *PipelineMetrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) PopulateFailed() {
	if m == nil {
		return
	}
	m.PopulateFailures.Inc()
}

func (m *PipelineMetrics) PublishAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.PublishAttempts.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) PublishFailed(kind string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(kind).Inc()
}

func (m *PipelineMetrics) Journaled(n int) {
	if m == nil {
		return
	}
	m.JournalEvents.Add(float64(n))
}

func (m *PipelineMetrics) Step(step string, started time.Time) {
	if m == nil {
		return
	}
	m.StepSeconds.WithLabelValues(step).Observe(time.Since(started).Seconds())
}

func (m *PipelineMetrics) Consumed(outcome string) {
	if m == nil {
		return
	}
	m.ConsumedEvents.WithLabelValues(outcome).Inc()
}
