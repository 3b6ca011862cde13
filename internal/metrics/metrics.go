// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Counter increment sources.
const (
	SourceRecommendation  = "recommendation"
	SourceLegacyRecommend = "legacy_recommend"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Query metrics
	IncQueryCreated()
	IncQueryDeleted()

	// Recommendation metrics
	IncRecommendationCreated()
	IncRecommendationDeleted()
	IncCounterIncrement(source string)

	// Identity cache metrics
	IncIdentityCacheHit()
	IncIdentityCacheMiss()

	// Reconciler metrics
	ObserveReconcile(corrected int, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
