package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncQueryCreated is a no-op.
func (n *NoopRecorder) IncQueryCreated() {}

// IncQueryDeleted is a no-op.
func (n *NoopRecorder) IncQueryDeleted() {}

// IncRecommendationCreated is a no-op.
func (n *NoopRecorder) IncRecommendationCreated() {}

// IncRecommendationDeleted is a no-op.
func (n *NoopRecorder) IncRecommendationDeleted() {}

// IncCounterIncrement is a no-op.
func (n *NoopRecorder) IncCounterIncrement(source string) {}

// IncIdentityCacheHit is a no-op.
func (n *NoopRecorder) IncIdentityCacheHit() {}

// IncIdentityCacheMiss is a no-op.
func (n *NoopRecorder) IncIdentityCacheMiss() {}

// ObserveReconcile is a no-op.
func (n *NoopRecorder) ObserveReconcile(corrected int, duration time.Duration) {}
