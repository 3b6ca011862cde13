package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/smartpick/smartpick/internal/model"
)

// Memory is a process-local Store. Records are returned in insertion order.
type Memory struct {
	mu      sync.RWMutex
	queries []*model.Query
	recs    []*model.Recommendation
	newID   func() string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		newID: func() string { return ulid.Make().String() },
	}
}

func validULID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

func copyQuery(q *model.Query) *model.Query {
	c := *q
	c.Fields = q.Fields.Clone()
	return &c
}

func copyRecommendation(r *model.Recommendation) *model.Recommendation {
	c := *r
	c.Fields = r.Fields.Clone()
	return &c
}

func (m *Memory) findQuery(id string) int {
	return slices.IndexFunc(m.queries, func(q *model.Query) bool { return q.ID == id })
}

func (m *Memory) findRecommendation(id string) int {
	return slices.IndexFunc(m.recs, func(r *model.Recommendation) bool { return r.ID == id })
}

// CreateQuery inserts a query.
func (m *Memory) CreateQuery(ctx context.Context, q *model.Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q.ID = m.newID()
	m.queries = append(m.queries, copyQuery(q))
	return nil
}

// ListQueries returns all queries.
func (m *Memory) ListQueries(ctx context.Context) ([]*model.Query, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Query, 0, len(m.queries))
	for _, q := range m.queries {
		out = append(out, copyQuery(q))
	}
	return out, nil
}

// GetQuery returns a query by id.
func (m *Memory) GetQuery(ctx context.Context, id string) (*model.Query, error) {
	if !validULID(id) {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.findQuery(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return copyQuery(m.queries[i]), nil
}

// DeleteQuery removes a query.
func (m *Memory) DeleteQuery(ctx context.Context, id string) error {
	if !validULID(id) {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.findQuery(id)
	if i < 0 {
		return ErrNotFound
	}
	m.queries = slices.Delete(m.queries, i, i+1)
	return nil
}

// IncrementRecommendationCount adjusts a query's counter.
func (m *Memory) IncrementRecommendationCount(ctx context.Context, id string, delta int64) (bool, error) {
	if !validULID(id) {
		return false, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.incrementLocked(id, delta), nil
}

func (m *Memory) incrementLocked(id string, delta int64) bool {
	i := m.findQuery(id)
	if i < 0 {
		return false
	}
	m.queries[i].RecommendationCount += delta
	return true
}

// SetRecommendationCount swaps a query's counter from one value to another.
func (m *Memory) SetRecommendationCount(ctx context.Context, id string, from, to int64) (bool, error) {
	if !validULID(id) {
		return false, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.findQuery(id)
	if i < 0 || m.queries[i].RecommendationCount != from {
		return false, nil
	}
	m.queries[i].RecommendationCount = to
	return true, nil
}

// TopQueries returns the highest-counted queries. Ties keep insertion order.
func (m *Memory) TopQueries(ctx context.Context, limit int) ([]*model.Query, error) {
	all, _ := m.ListQueries(ctx)
	slices.SortStableFunc(all, func(a, b *model.Query) int {
		switch {
		case a.RecommendationCount > b.RecommendationCount:
			return -1
		case a.RecommendationCount < b.RecommendationCount:
			return 1
		default:
			return 0
		}
	})
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ListQueriesByOwner returns queries created by email.
func (m *Memory) ListQueriesByOwner(ctx context.Context, email string) ([]*model.Query, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Query
	for _, q := range m.queries {
		if q.Email == email {
			out = append(out, copyQuery(q))
		}
	}
	return out, nil
}

// AddRecommendation inserts a recommendation and bumps its query's counter atomically.
func (m *Memory) AddRecommendation(ctx context.Context, rec *model.Recommendation) error {
	if !validULID(rec.QueryID) {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = m.newID()
	m.recs = append(m.recs, copyRecommendation(rec))
	m.incrementLocked(rec.QueryID, 1)
	return nil
}

// GetRecommendation returns a recommendation by id.
func (m *Memory) GetRecommendation(ctx context.Context, id string) (*model.Recommendation, error) {
	if !validULID(id) {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.findRecommendation(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return copyRecommendation(m.recs[i]), nil
}

// ListRecommendations returns recommendations matching filter.
func (m *Memory) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]*model.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Recommendation, 0)
	for _, r := range m.recs {
		if filter.Matches(r) {
			out = append(out, copyRecommendation(r))
		}
	}
	return out, nil
}

// RemoveRecommendation deletes a recommendation and decrements its query's counter atomically.
func (m *Memory) RemoveRecommendation(ctx context.Context, rec *model.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.findRecommendation(rec.ID)
	if i < 0 {
		return ErrNotFound
	}
	m.recs = slices.Delete(m.recs, i, i+1)
	m.incrementLocked(rec.QueryID, -1)
	return nil
}

// ListRecommendationsForQueries returns recommendations attached to any of queryIDs.
func (m *Memory) ListRecommendationsForQueries(ctx context.Context, queryIDs []string) ([]*model.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Recommendation, 0)
	for _, r := range m.recs {
		if slices.Contains(queryIDs, r.QueryID) {
			out = append(out, copyRecommendation(r))
		}
	}
	return out, nil
}

// CountRecommendationsByQuery tallies live recommendations per queryId.
func (m *Memory) CountRecommendationsByQuery(ctx context.Context) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for _, r := range m.recs {
		counts[r.QueryID]++
	}
	return counts, nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close(ctx context.Context) error { return nil }
