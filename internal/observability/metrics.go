// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/auther/internal/auth"
)

// Metrics holds the authenticator's Prometheus collectors. It implements
// auth.Recorder.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SweepsTotal       *prometheus.CounterVec
	TokensSwept       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auther_operations_total",
				Help: "Authenticator operations by operation and result code",
			},
			[]string{"operation", "result"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auther_operation_duration_seconds",
				Help:    "Authenticator operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auther_gc_sweeps_total",
				Help: "Expired token sweeps by result",
			},
			[]string{"result"},
		),
		TokensSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auther_tokens_swept_total",
				Help: "Expired token records removed by sweeps",
			},
		),
	}

	reg.MustRegister(m.OperationsTotal, m.OperationDuration, m.SweepsTotal, m.TokensSwept)
	return m
}

// ObserveOperation records one authenticator operation.
func (m *Metrics) ObserveOperation(operation, result string, elapsed time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, result).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveSweep records one GC sweep.
func (m *Metrics) ObserveSweep(result string, swept int64) {
	m.SweepsTotal.WithLabelValues(result).Inc()
	if swept > 0 {
		m.TokensSwept.Add(float64(swept))
	}
}

var _ auth.Recorder = (*Metrics)(nil)
