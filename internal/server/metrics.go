package server

import (
	"time"

	"go.uber.org/atomic"

	"github.com/Brownie44l1/originserver/internal/response"
)

// Metrics holds server runtime metrics
type Metrics struct {
	RequestsTotal     atomic.Int64
	ActiveConnections atomic.Int64
	ErrorsTotal       atomic.Int64
	Errors4xx         atomic.Int64
	Errors5xx         atomic.Int64
	Dropped           atomic.Int64 // connections closed without a response

	TotalLatencyNs atomic.Int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records a completed request
func (m *Metrics) RecordRequest(status response.StatusCode, duration time.Duration) {
	m.RequestsTotal.Inc()
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	switch {
	case status.IsClientError():
		m.Errors4xx.Inc()
	case status.IsServerError():
		m.Errors5xx.Inc()
		m.ErrorsTotal.Inc()
	}
}

// RecordDrop records a connection that ended without a response
func (m *Metrics) RecordDrop() {
	m.Dropped.Inc()
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}
	return time.Duration(m.TotalLatencyNs.Load() / totalReqs)
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	RequestsTotal     int64
	ActiveConnections int64
	ErrorsTotal       int64
	Errors4xx         int64
	Errors5xx         int64
	Dropped           int64
	AverageLatency    time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RequestsTotal:     m.RequestsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		ErrorsTotal:       m.ErrorsTotal.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		Dropped:           m.Dropped.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
