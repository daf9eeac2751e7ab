// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package metrics exposes Prometheus instrumentation for the wire-protocol
// core. A nil *Recorder is valid and every method on it is a no-op, so
// callers never need to guard a call with a nil check.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder holds the core's Prometheus collectors. Construct one with New
// and register it with a registry; a nil Recorder behaves as a no-op sink.
type Recorder struct {
	requestsTotal     *prometheus.CounterVec
	requestsInFlight  prometheus.Gauge
	requestTableDepth prometheus.Gauge
	discoveryTotal    *prometheus.CounterVec
	replyLatency      prometheus.Histogram
}

// New builds a Recorder and registers its collectors with reg. namespace
// prefixes every metric name (e.g. "mongowire").
func New(reg prometheus.Registerer, namespace string) *Recorder {
	r := &Recorder{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Write-helper invocations, partitioned by operation and outcome.",
		}, []string{"op", "outcome"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests admitted to a Protocol's request table awaiting a reply.",
		}),
		requestTableDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "request_table_depth",
			Help:      "Current size of a Protocol's request table.",
		}),
		discoveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_total",
			Help:      "ismaster discovery attempts, partitioned by outcome.",
		}, []string{"outcome"}),
		replyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_seconds",
			Help:      "Time from write-helper admission to reply dispatch.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(r.requestsTotal, r.requestsInFlight, r.requestTableDepth, r.discoveryTotal, r.replyLatency)
	return r
}

// RequestStarted increments the in-flight gauge and the request-table depth
// gauge for a newly admitted op.
func (r *Recorder) RequestStarted() {
	if r == nil {
		return
	}
	r.requestsInFlight.Inc()
	r.requestTableDepth.Inc()
}

// RequestCompleted decrements the in-flight/table-depth gauges and records
// the terminal outcome ("ok", "error", "cancelled") for op.
func (r *Recorder) RequestCompleted(op, outcome string) {
	if r == nil {
		return
	}
	r.requestsInFlight.Dec()
	r.requestTableDepth.Dec()
	r.requestsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveReplyLatencySeconds records the latency of one completed request.
func (r *Recorder) ObserveReplyLatencySeconds(seconds float64) {
	if r == nil {
		return
	}
	r.replyLatency.Observe(seconds)
}

// DiscoveryAttempt records one ismaster discovery attempt's outcome
// ("dial-error", "ismaster-error", "not-primary", "ok").
func (r *Recorder) DiscoveryAttempt(outcome string) {
	if r == nil {
		return
	}
	r.discoveryTotal.WithLabelValues(outcome).Inc()
}
