package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	QueriesCreated         uint64
	QueriesDeleted         uint64
	RecommendationsCreated uint64
	RecommendationsDeleted uint64
	CounterIncrements      map[string]uint64
	IdentityCacheHits      uint64
	IdentityCacheMisses    uint64
	ReconcileRuns          uint64
	ReconcileCorrected     uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	queriesCreated         uint64
	queriesDeleted         uint64
	recommendationsCreated uint64
	recommendationsDeleted uint64
	identityCacheHits      uint64
	identityCacheMisses    uint64
	reconcileRuns          uint64
	reconcileCorrected     uint64

	mu                sync.Mutex
	counterIncrements map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{counterIncrements: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	increments := make(map[string]uint64, len(m.counterIncrements))
	for k, v := range m.counterIncrements {
		increments[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		QueriesCreated:         atomic.LoadUint64(&m.queriesCreated),
		QueriesDeleted:         atomic.LoadUint64(&m.queriesDeleted),
		RecommendationsCreated: atomic.LoadUint64(&m.recommendationsCreated),
		RecommendationsDeleted: atomic.LoadUint64(&m.recommendationsDeleted),
		CounterIncrements:      increments,
		IdentityCacheHits:      atomic.LoadUint64(&m.identityCacheHits),
		IdentityCacheMisses:    atomic.LoadUint64(&m.identityCacheMisses),
		ReconcileRuns:          atomic.LoadUint64(&m.reconcileRuns),
		ReconcileCorrected:     atomic.LoadUint64(&m.reconcileCorrected),
	}
}

// IncQueryCreated increments query created counter.
func (m *InMemoryRecorder) IncQueryCreated() {
	atomic.AddUint64(&m.queriesCreated, 1)
}

// IncQueryDeleted increments query deleted counter.
func (m *InMemoryRecorder) IncQueryDeleted() {
	atomic.AddUint64(&m.queriesDeleted, 1)
}

// IncRecommendationCreated increments recommendation created counter.
func (m *InMemoryRecorder) IncRecommendationCreated() {
	atomic.AddUint64(&m.recommendationsCreated, 1)
}

// IncRecommendationDeleted increments recommendation deleted counter.
func (m *InMemoryRecorder) IncRecommendationDeleted() {
	atomic.AddUint64(&m.recommendationsDeleted, 1)
}

// IncCounterIncrement counts a recommendationCount change by source.
func (m *InMemoryRecorder) IncCounterIncrement(source string) {
	m.mu.Lock()
	m.counterIncrements[source]++
	m.mu.Unlock()
}

// IncIdentityCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncIdentityCacheHit() {
	atomic.AddUint64(&m.identityCacheHits, 1)
}

// IncIdentityCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncIdentityCacheMiss() {
	atomic.AddUint64(&m.identityCacheMisses, 1)
}

// ObserveReconcile records a reconciler pass.
func (m *InMemoryRecorder) ObserveReconcile(corrected int, duration time.Duration) {
	atomic.AddUint64(&m.reconcileRuns, 1)
	atomic.AddUint64(&m.reconcileCorrected, uint64(corrected))
}
