package service

import (
	"context"
	"time"

	"github.com/smartpick/smartpick/internal/metrics"
	"github.com/smartpick/smartpick/internal/model"
	"github.com/smartpick/smartpick/internal/repository"
)

// QueryService handles query business logic.
type QueryService struct {
	store   repository.Store
	metrics metrics.Recorder
	now     func() time.Time
}

// NewQueryService creates a new QueryService.
func NewQueryService(store repository.Store, recorder metrics.Recorder) *QueryService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &QueryService{
		store:   store,
		metrics: recorder,
		now:     time.Now,
	}
}

// Create stores a new query owned by caller. Client values for server-owned
// keys are replaced.
func (s *QueryService) Create(ctx context.Context, caller *model.Identity, fields model.Fields) (*model.Query, error) {
	if caller == nil || caller.Email == "" {
		return nil, ErrUnauthenticated
	}

	q := model.NewQuery(fields, caller, s.now())
	if err := s.store.CreateQuery(ctx, q); err != nil {
		return nil, mapStoreError(err, ErrQueryNotFound, "create query")
	}

	s.metrics.IncQueryCreated()
	return q, nil
}

// List returns every query.
func (s *QueryService) List(ctx context.Context) ([]*model.Query, error) {
	queries, err := s.store.ListQueries(ctx)
	if err != nil {
		return nil, mapStoreError(err, ErrQueryNotFound, "list queries")
	}
	return queries, nil
}

// Get retrieves a query by id.
func (s *QueryService) Get(ctx context.Context, id string) (*model.Query, error) {
	q, err := s.store.GetQuery(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, ErrQueryNotFound, "get query")
	}
	return q, nil
}

// Delete removes a query owned by callerEmail. Existence is checked before
// ownership, so a query owned by someone else is always ErrForbidden.
// Recommendations referencing the query are left in place.
func (s *QueryService) Delete(ctx context.Context, id, callerEmail string) error {
	q, err := s.store.GetQuery(ctx, id)
	if err != nil {
		return mapStoreError(err, ErrQueryNotFound, "get query")
	}
	if !q.OwnedBy(callerEmail) {
		return ErrForbidden
	}

	if err := s.store.DeleteQuery(ctx, id); err != nil {
		return mapStoreError(err, ErrQueryNotFound, "delete query")
	}

	s.metrics.IncQueryDeleted()
	return nil
}

// Recommend adds one to the query's recommendationCount and reports how many
// queries matched. Nothing else is checked.
func (s *QueryService) Recommend(ctx context.Context, id string) (int64, error) {
	matched, err := s.store.IncrementRecommendationCount(ctx, id, 1)
	if err != nil {
		return 0, mapStoreError(err, ErrQueryNotFound, "increment recommendation count")
	}
	if !matched {
		return 0, nil
	}

	s.metrics.IncCounterIncrement(metrics.SourceLegacyRecommend)
	return 1, nil
}

// Top returns the most recommended queries, at most TopQueriesLimit.
func (s *QueryService) Top(ctx context.Context) ([]*model.Query, error) {
	queries, err := s.store.TopQueries(ctx, TopQueriesLimit)
	if err != nil {
		return nil, mapStoreError(err, ErrQueryNotFound, "top queries")
	}
	return queries, nil
}
