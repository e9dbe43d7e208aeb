package exemplar

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordCenterAdmitted is called each time seeding admits a center.
	RecordCenterAdmitted()

	// RecordMedoidRound is called after each K-Medoids round with the number of
	// proposals made and swaps accepted.
	RecordMedoidRound(proposed, accepted int, duration time.Duration)

	// RecordDistanceEvaluations is called with the number of item distances a
	// metric call produced on this worker.
	RecordDistanceEvaluations(n int)

	// RecordRun is called after each top-level call.
	RecordRun(algorithm string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCenterAdmitted()                     {}
func (NoopMetricsCollector) RecordMedoidRound(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordDistanceEvaluations(int)             {}
func (NoopMetricsCollector) RecordRun(string, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	CentersAdmitted     atomic.Int64
	MedoidRounds        atomic.Int64
	MedoidProposals     atomic.Int64
	MedoidSwaps         atomic.Int64
	MedoidTotalNanos    atomic.Int64
	DistanceEvaluations atomic.Int64
	RunCount            atomic.Int64
	RunErrors           atomic.Int64
	RunTotalNanos       atomic.Int64
}

// RecordCenterAdmitted implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCenterAdmitted() {
	b.CentersAdmitted.Add(1)
}

// RecordMedoidRound implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMedoidRound(proposed, accepted int, duration time.Duration) {
	b.MedoidRounds.Add(1)
	b.MedoidProposals.Add(int64(proposed))
	b.MedoidSwaps.Add(int64(accepted))
	b.MedoidTotalNanos.Add(duration.Nanoseconds())
}

// RecordDistanceEvaluations implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDistanceEvaluations(n int) {
	b.DistanceEvaluations.Add(int64(n))
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(_ string, duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CentersAdmitted:     b.CentersAdmitted.Load(),
		MedoidRounds:        b.MedoidRounds.Load(),
		MedoidProposals:     b.MedoidProposals.Load(),
		MedoidSwaps:         b.MedoidSwaps.Load(),
		MedoidAvgNanos:      avg(b.MedoidTotalNanos.Load(), b.MedoidRounds.Load()),
		DistanceEvaluations: b.DistanceEvaluations.Load(),
		RunCount:            b.RunCount.Load(),
		RunErrors:           b.RunErrors.Load(),
		RunAvgNanos:         avg(b.RunTotalNanos.Load(), b.RunCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CentersAdmitted     int64
	MedoidRounds        int64
	MedoidProposals     int64
	MedoidSwaps         int64
	MedoidAvgNanos      int64
	DistanceEvaluations int64
	RunCount            int64
	RunErrors           int64
	RunAvgNanos         int64
}
