package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the gesture sequencer.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter

	sequencesStarted    prometheus.Counter
	sequencesCompleted  prometheus.Counter
	sequencesCanceled   prometheus.Counter
	sequencesUnplayable prometheus.Counter
	requestsRejected    prometheus.Counter
	gesturesSkipped     prometheus.Counter
	activeSequences     prometheus.Gauge
	handlerOutcomes     *prometheus.CounterVec

	clipFetches       prometheus.Counter
	clipFetchFailures prometheus.Counter
	clipCacheHits     prometheus.Counter
	cachedClips       prometheus.Gauge
}

// New creates and registers Prometheus metrics for the sequencer.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		registry.MustRegister(c)
		return c
	}
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		registry.MustRegister(g)
		return g
	}

	handlerOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gesture_handler_outcomes_total",
		Help: "Sequence and cancel requests by action and outcome",
	}, []string{"action", "outcome"})
	registry.MustRegister(handlerOutcomes)

	return &Metrics{
		registry:      registry,
		requestsTotal: counter("gesture_requests_total", "Total number of HTTP requests received"),
		errorsTotal:   counter("gesture_errors_total", "Total number of HTTP responses with error status (4xx or 5xx)"),

		sequencesStarted:    counter("gesture_sequences_started_total", "Sequences that entered playback"),
		sequencesCompleted:  counter("gesture_sequences_completed_total", "Sequences that drained and returned to idle"),
		sequencesCanceled:   counter("gesture_sequences_canceled_total", "Sequences stopped through the cancel hook"),
		sequencesUnplayable: counter("gesture_sequences_unplayable_total", "Sequences where no gesture could be loaded"),
		requestsRejected:    counter("gesture_requests_rejected_total", "Sequence requests refused because one was already active"),
		gesturesSkipped:     counter("gesture_skipped_total", "Gestures skipped during playback because no clip was available"),
		activeSequences:     gauge("gesture_active_sequences", "Avatars currently resolving, playing or draining a sequence"),
		handlerOutcomes:     handlerOutcomes,

		clipFetches:       counter("gesture_clip_fetches_total", "Clip loads issued to the clip source"),
		clipFetchFailures: counter("gesture_clip_fetch_failures_total", "Clip loads that failed"),
		clipCacheHits:     counter("gesture_clip_cache_hits_total", "Clip resolutions served from the cache"),
		cachedClips:       gauge("gesture_cached_clips", "Number of clips held in the cache"),
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncSequencesStarted increments the sequences started counter.
func (m *Metrics) IncSequencesStarted() {
	m.sequencesStarted.Inc()
}

// IncSequencesCompleted increments the sequences completed counter.
func (m *Metrics) IncSequencesCompleted() {
	m.sequencesCompleted.Inc()
}

// IncSequencesCanceled increments the sequences canceled counter.
func (m *Metrics) IncSequencesCanceled() {
	m.sequencesCanceled.Inc()
}

// IncSequencesUnplayable increments the sequences unplayable counter.
func (m *Metrics) IncSequencesUnplayable() {
	m.sequencesUnplayable.Inc()
}

// IncRequestsRejected increments the requests rejected counter.
func (m *Metrics) IncRequestsRejected() {
	m.requestsRejected.Inc()
}

// IncGesturesSkipped increments the gestures skipped counter.
func (m *Metrics) IncGesturesSkipped() {
	m.gesturesSkipped.Inc()
}

// SetActiveSequences sets the active sequences gauge.
func (m *Metrics) SetActiveSequences(n int) {
	m.activeSequences.Set(float64(n))
}

// IncHandlerOutcome counts one HTTP request for action ("play", "cancel")
// that ended with outcome.
func (m *Metrics) IncHandlerOutcome(action, outcome string) {
	m.handlerOutcomes.WithLabelValues(action, outcome).Inc()
}

// IncClipFetches increments the clip fetches counter.
func (m *Metrics) IncClipFetches() {
	m.clipFetches.Inc()
}

// IncClipFetchFailures increments the clip fetch failures counter.
func (m *Metrics) IncClipFetchFailures() {
	m.clipFetchFailures.Inc()
}

// IncClipCacheHits increments the clip cache hits counter.
func (m *Metrics) IncClipCacheHits() {
	m.clipCacheHits.Inc()
}

// SetCachedClips sets the cached clips gauge.
func (m *Metrics) SetCachedClips(n int) {
	m.cachedClips.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g.
// cached clips, active sequences).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
