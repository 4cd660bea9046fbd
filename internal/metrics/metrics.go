// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics records task execution and transport request metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder observes task lifecycles and protocol requests.
type Recorder interface {
	// TaskStarted counts an accepted execution.
	TaskStarted()

	// TaskFinished records the terminal state of an execution and how long it ran.
	TaskFinished(state string, elapsed time.Duration)

	// ObserveRequest counts one request of method served over protocol.
	// code is 0 on success, or the JSON-RPC error code of the failure.
	ObserveRequest(protocol, method string, code int)
}

// Nop returns a [Recorder] that records nothing.
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) TaskStarted()                       {}
func (nopRecorder) TaskFinished(string, time.Duration) {}
func (nopRecorder) ObserveRequest(string, string, int) {}

// PrometheusRecorder implements [Recorder] with Prometheus collectors.
type PrometheusRecorder struct {
	gatherer prometheus.Gatherer

	tasksStarted  prometheus.Counter
	tasksTerminal *prometheus.CounterVec
	taskDuration  prometheus.Histogram
	requestsTotal *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the A2A collectors on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	return NewPrometheusRecorderWith(reg, reg)
}

// NewPrometheusRecorderWith registers the A2A collectors on reg and serves
// gatherer from [PrometheusRecorder.Handler].
func NewPrometheusRecorderWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		gatherer: gatherer,
		tasksStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "a2a_tasks_started_total",
				Help: "Total number of task executions started",
			},
		),
		tasksTerminal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "a2a_task_terminal_total",
				Help: "Total number of task executions by terminal state",
			},
			[]string{"state"},
		),
		taskDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "a2a_task_duration_seconds",
				Help:    "Duration of task executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "a2a_requests_total",
				Help: "Total number of protocol requests by protocol, method and result code",
			},
			[]string{"protocol", "method", "code"},
		),
	}
}

// TaskStarted implements [Recorder].
func (p *PrometheusRecorder) TaskStarted() {
	p.tasksStarted.Inc()
}

// TaskFinished implements [Recorder].
func (p *PrometheusRecorder) TaskFinished(state string, elapsed time.Duration) {
	p.tasksTerminal.WithLabelValues(state).Inc()
	p.taskDuration.Observe(elapsed.Seconds())
}

// ObserveRequest implements [Recorder].
func (p *PrometheusRecorder) ObserveRequest(protocol, method string, code int) {
	p.requestsTotal.WithLabelValues(protocol, method, strconv.Itoa(code)).Inc()
}

// Handler returns the HTTP handler exposing the collected metrics.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
