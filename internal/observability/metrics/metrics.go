// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinical_scribe"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Segmenter metrics
	WindowsProduced prometheus.Counter
	WindowDuration  prometheus.Histogram
	WindowAdaptions *prometheus.CounterVec

	// Tier metrics
	CandidatesTotal  *prometheus.CounterVec
	TierErrors       *prometheus.CounterVec
	TierTimeouts     *prometheus.CounterVec
	TierSkippedAhead *prometheus.CounterVec
	TierLatency      *prometheus.HistogramVec

	// Reconciliation metrics
	SpansCreated     prometheus.Counter
	SpansLocked      prometheus.Counter
	SpanTransitions  *prometheus.CounterVec
	SpanReplacements *prometheus.CounterVec
	StaleCandidates  prometheus.Counter

	// Comprehension metrics
	EntitiesCreated     *prometheus.CounterVec
	MentionsResolved    *prometheus.CounterVec
	AmbiguousReferences prometheus.Counter
	NegatedMentions     prometheus.Counter
	AnchorsResolved     prometheus.Counter

	// Safety / quality metrics
	AlertsFired  *prometheus.CounterVec
	RuleErrors   *prometheus.CounterVec
	Completeness prometheus.Gauge
	OverallConf  prometheus.Gauge

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		WindowsProduced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_produced_total",
			Help:      "Total number of audio windows produced by the segmenter",
		}),
		WindowDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_duration_seconds",
			Help:      "Duration of produced audio windows in seconds",
			Buckets:   []float64{1, 1.5, 2, 2.5, 3, 4},
		}),
		WindowAdaptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_adaptions_total",
			Help:      "Total number of adaptive window duration changes",
		}, []string{"direction"}),

		CandidatesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Total transcript candidates emitted per tier",
		}, []string{"tier"}),
		TierErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_errors_total",
			Help:      "Total provider failures per tier",
		}, []string{"tier"}),
		TierTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_timeouts_total",
			Help:      "Total provider timeouts per tier",
		}, []string{"tier"}),
		TierSkippedAhead: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_skipped_ahead_total",
			Help:      "Total windows dropped because a tier fell behind",
		}, []string{"tier"}),
		TierLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tier_latency_seconds",
			Help:      "Provider transcription latency per tier",
			Buckets:   []float64{0.05, 0.1, 0.15, 0.25, 0.5, 1, 2, 5},
		}, []string{"tier"}),

		SpansCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_created_total",
			Help:      "Total reconciled spans created",
		}),
		SpansLocked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_locked_total",
			Help:      "Total reconciled spans locked",
		}),
		SpanTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "span_transitions_total",
			Help:      "Total span state transitions",
		}, []string{"to"}),
		SpanReplacements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "span_replacements_total",
			Help:      "Total span text replacements by merge kind",
		}, []string{"kind"}),
		StaleCandidates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_candidates_total",
			Help:      "Total candidates ignored because their span was locked",
		}),

		EntitiesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_created_total",
			Help:      "Total clinical entities created by type",
		}, []string{"type"}),
		MentionsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentions_resolved_total",
			Help:      "Total mentions attached to entities by reference kind",
		}, []string{"kind"}),
		AmbiguousReferences: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ambiguous_references_total",
			Help:      "Total references resolved via recency bias",
		}),
		NegatedMentions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negated_mentions_total",
			Help:      "Total mentions recorded inside negation scope",
		}),
		AnchorsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temporal_anchors_total",
			Help:      "Total temporal anchors resolved",
		}),

		AlertsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Total safety alerts fired by severity",
		}, []string{"severity"}),
		RuleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_errors_total",
			Help:      "Total malformed safety rules skipped",
		}, []string{"rule"}),
		Completeness: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_completeness",
			Help:      "Current quality completeness score",
		}),
		OverallConf: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_confidence",
			Help:      "Current confidence-weighted mean over entities",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordWindow records a produced audio window.
func (m *Metrics) RecordWindow(durationSeconds float64) {
	m.WindowsProduced.Inc()
	m.WindowDuration.Observe(durationSeconds)
}

// RecordAdaption records an adaptive window duration change.
func (m *Metrics) RecordAdaption(direction string) {
	m.WindowAdaptions.WithLabelValues(direction).Inc()
}

// RecordCandidate records a candidate emitted by a tier.
func (m *Metrics) RecordCandidate(tier string, latencySeconds float64) {
	m.CandidatesTotal.WithLabelValues(tier).Inc()
	m.TierLatency.WithLabelValues(tier).Observe(latencySeconds)
}

// RecordTierError records a provider failure for a tier.
func (m *Metrics) RecordTierError(tier string, timeout bool) {
	if timeout {
		m.TierTimeouts.WithLabelValues(tier).Inc()
	} else {
		m.TierErrors.WithLabelValues(tier).Inc()
	}
}

// RecordSkippedAhead records windows dropped for a lagging tier.
func (m *Metrics) RecordSkippedAhead(tier string, n int) {
	m.TierSkippedAhead.WithLabelValues(tier).Add(float64(n))
}

// RecordTransition records a span state transition.
func (m *Metrics) RecordTransition(to string) {
	m.SpanTransitions.WithLabelValues(to).Inc()
	if to == "locked" {
		m.SpansLocked.Inc()
	}
}

// RecordReplacement records a span text replacement merge kind
// (extension, debounced, immediate).
func (m *Metrics) RecordReplacement(kind string) {
	m.SpanReplacements.WithLabelValues(kind).Inc()
}

// RecordEntity records a created entity.
func (m *Metrics) RecordEntity(entityType string) {
	m.EntitiesCreated.WithLabelValues(entityType).Inc()
}

// RecordMention records a resolved mention.
func (m *Metrics) RecordMention(kind string) {
	m.MentionsResolved.WithLabelValues(kind).Inc()
}

// RecordAlerts records fired alerts by severity.
func (m *Metrics) RecordAlerts(severity string, n int) {
	m.AlertsFired.WithLabelValues(severity).Add(float64(n))
}

// RecordRuleError records a malformed rule being skipped.
func (m *Metrics) RecordRuleError(rule string) {
	m.RuleErrors.WithLabelValues(rule).Inc()
}

// RecordQuality records the latest quality snapshot.
func (m *Metrics) RecordQuality(completeness, confidence float64) {
	m.Completeness.Set(completeness)
	m.OverallConf.Set(confidence)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
