package engine

import "time"

// MetricsCollector provides hooks for observability.
type MetricsCollector interface {
	// RecordSyncDuration records how long a sync phase took
	RecordSyncDuration(op string, d time.Duration)

	// RecordSyncItems records how many items were synced
	RecordSyncItems(pushed, pulled int)

	// RecordConflicts records how many conflicts were resolved
	RecordConflicts(count int)

	// RecordSyncErrors records sync operation errors
	RecordSyncErrors(op, reason string)
}

// NoOpMetricsCollector is a stub implementation that discards metrics.
type NoOpMetricsCollector struct{}

func (*NoOpMetricsCollector) RecordSyncDuration(op string, d time.Duration) {}
func (*NoOpMetricsCollector) RecordSyncItems(pushed, pulled int)            {}
func (*NoOpMetricsCollector) RecordConflicts(count int)                     {}
func (*NoOpMetricsCollector) RecordSyncErrors(op, reason string)            {}
