// Package metric defines the Prometheus metrics exported on /metrics.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wikimotivos"

// Metrics contains every metric the service records.
type Metrics struct {
	Submissions      *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	Votes            *prometheus.CounterVec
	Reconciliation   *prometheus.CounterVec
	SearchResults    prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the metrics and registers them on a fresh registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "submit",
				Name:      "submissions_total",
				Help:      "Statement submissions by branch and outcome",
			},
			[]string{"branch", "outcome"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Outbound requests by service, action and result",
			},
			[]string{"service", "action", "result"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Outbound request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "action"},
		),
		Votes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "votes_total",
				Help:      "Votes appended per ledger",
			},
			[]string{"log"},
		),
		Reconciliation: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "submit",
				Name:      "reconciliation_total",
				Help:      "Claim handle lookups after creation, by result (hit, miss)",
			},
			[]string{"result"},
		),
		SearchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "results",
				Help:      "Number of candidates returned per search after filtering",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Inbound HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Submissions,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.Votes,
		m.Reconciliation,
		m.SearchResults,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveUpstream records one outbound call. A nil *Metrics records nothing.
func (m *Metrics) ObserveUpstream(service, action string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UpstreamRequests.WithLabelValues(service, action, result).Inc()
	m.UpstreamDuration.WithLabelValues(service, action).Observe(seconds)
}

// ObserveSubmission records the branch taken by a submission and its outcome.
func (m *Metrics) ObserveSubmission(branch, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(branch, outcome).Inc()
}

// ObserveVote records a vote appended to a ledger.
func (m *Metrics) ObserveVote(log string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(log).Inc()
}

// ObserveReconciliation records whether the claim lookup found the new claim.
func (m *Metrics) ObserveReconciliation(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.Reconciliation.WithLabelValues(result).Inc()
}

// ObserveSearch records the size of a search result.
func (m *Metrics) ObserveSearch(n int) {
	if m == nil {
		return
	}
	m.SearchResults.Observe(float64(n))
}

// ObserveHTTP records an inbound request.
func (m *Metrics) ObserveHTTP(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}
