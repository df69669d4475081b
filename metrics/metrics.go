// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes Prometheus collectors for the grouping, relay and
// ingestion components. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dekuf"

// Response sources
const (
	SourceDirect   = "direct"
	SourceDelegate = "delegate"
)

type Metrics struct {
	registry *prometheus.Registry

	signups         prometheus.Counter
	groupsFormed    prometheus.Counter
	groupsDissolved prometheus.Counter
	relayMessages   *prometheus.CounterVec
	responses       *prometheus.CounterVec
	txRetries       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Survey signups created.",
		}),
		groupsFormed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_formed_total",
			Help:      "Aggregation groups formed.",
		}),
		groupsDissolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_dissolved_total",
			Help:      "Aggregation groups dissolved after their delegate submitted.",
		}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Relay operations by direction (sent, received).",
		}, []string{"direction"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "survey_responses_total",
			Help:      "Survey responses ingested by source (direct, delegate).",
		}, []string{"source"}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retries_total",
			Help:      "Transactions retried after a conflict, by operation.",
		}, []string{"operation"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.signups,
		m.groupsFormed,
		m.groupsDissolved,
		m.relayMessages,
		m.responses,
		m.txRetries,
		m.requestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests that gather values directly.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SignupCreated() {
	if m == nil {
		return
	}
	m.signups.Inc()
}

func (m *Metrics) GroupsFormed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.groupsFormed.Add(float64(n))
}

func (m *Metrics) GroupDissolved() {
	if m == nil {
		return
	}
	m.groupsDissolved.Inc()
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.relayMessages.WithLabelValues("sent").Inc()
}

func (m *Metrics) MessagesReceived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.relayMessages.WithLabelValues("received").Add(float64(n))
}

func (m *Metrics) ResponseIngested(source string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(source).Inc()
}

// RetryCounter returns a callback suitable for db.RetryTx.
func (m *Metrics) RetryCounter(operation string) func(error) {
	if m == nil {
		return nil
	}
	c := m.txRetries.WithLabelValues(operation)
	return func(error) { c.Inc() }
}

func (m *Metrics) ObserveRequest(method, route string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Value sums every sample of the named counter or gauge family. It returns 0
// for unknown names.
func (m *Metrics) Value(name string) float64 {
	if m == nil {
		return 0
	}
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total
}
