package bovw

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    processCounter   *prometheus.CounterVec
//	    processHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordProcess(outcome bovw.Outcome, records int, duration time.Duration) {
//	    p.processCounter.WithLabelValues(outcome.String()).Inc()
//	    // ... record duration, record counts, etc.
//	}
type MetricsCollector interface {
	// RecordProcess is called after each image request with its outcome,
	// the number of hit records written, and the total time taken.
	RecordProcess(outcome Outcome, records int, duration time.Duration)

	// RecordBatch is called after each batch run. count is the number of
	// images attempted, failed is the number with non-Ok outcomes.
	RecordBatch(count, failed int, duration time.Duration)

	// RecordShip is called after each hit-file upload attempt.
	RecordShip(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordProcess(Outcome, int, time.Duration) {}
func (NoopMetricsCollector) RecordBatch(int, int, time.Duration)       {}
func (NoopMetricsCollector) RecordShip(time.Duration, error)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ProcessCount      atomic.Int64
	ProcessFailures   atomic.Int64
	ProcessTotalNanos atomic.Int64
	RecordsWritten    atomic.Int64
	BatchCount        atomic.Int64
	BatchItems        atomic.Int64
	BatchFailed       atomic.Int64
	ShipCount         atomic.Int64
	ShipErrors        atomic.Int64
}

// RecordProcess implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProcess(outcome Outcome, records int, duration time.Duration) {
	b.ProcessCount.Add(1)
	b.ProcessTotalNanos.Add(duration.Nanoseconds())
	b.RecordsWritten.Add(int64(records))
	if outcome != OutcomeOk {
		b.ProcessFailures.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(count, failed int, duration time.Duration) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(count))
	b.BatchFailed.Add(int64(failed))
}

// RecordShip implements MetricsCollector.
func (b *BasicMetricsCollector) RecordShip(duration time.Duration, err error) {
	b.ShipCount.Add(1)
	if err != nil {
		b.ShipErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ProcessCount:     b.ProcessCount.Load(),
		ProcessFailures:  b.ProcessFailures.Load(),
		ProcessAvgNanos:  b.getAvgProcessNanos(),
		RecordsWritten:   b.RecordsWritten.Load(),
		BatchCount:       b.BatchCount.Load(),
		BatchItems:       b.BatchItems.Load(),
		BatchFailed:      b.BatchFailed.Load(),
		ShipCount:        b.ShipCount.Load(),
		ShipErrors:       b.ShipErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgProcessNanos() int64 {
	count := b.ProcessCount.Load()
	if count == 0 {
		return 0
	}
	return b.ProcessTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ProcessCount    int64
	ProcessFailures int64
	ProcessAvgNanos int64
	RecordsWritten  int64
	BatchCount      int64
	BatchItems      int64
	BatchFailed     int64
	ShipCount       int64
	ShipErrors      int64
}
