package service

import (
	"context"
	"time"

	"github.com/smartpick/smartpick/internal/metrics"
	"github.com/smartpick/smartpick/internal/model"
	"github.com/smartpick/smartpick/internal/repository"
)

// RecommendationService handles recommendation business logic.
type RecommendationService struct {
	store   repository.Store
	metrics metrics.Recorder
	now     func() time.Time
}

// NewRecommendationService creates a new RecommendationService.
func NewRecommendationService(store repository.Store, recorder metrics.Recorder) *RecommendationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RecommendationService{
		store:   store,
		metrics: recorder,
		now:     time.Now,
	}
}

// ListFilter narrows List. Empty fields impose no constraint.
type ListFilter struct {
	QueryID   string
	UserEmail string
}

// Create stores a recommendation on queryID authored by caller and bumps the
// query's counter. A queryID that names no query is accepted.
func (s *RecommendationService) Create(ctx context.Context, caller *model.Identity, queryID string, fields model.Fields) (*model.Recommendation, error) {
	if caller == nil || caller.Email == "" {
		return nil, ErrUnauthenticated
	}
	if queryID == "" {
		return nil, ErrInvalidInput
	}

	rec := model.NewRecommendation(queryID, fields, caller, s.now())
	if err := s.store.AddRecommendation(ctx, rec); err != nil {
		return nil, mapStoreError(err, ErrQueryNotFound, "add recommendation")
	}

	s.metrics.IncRecommendationCreated()
	s.metrics.IncCounterIncrement(metrics.SourceRecommendation)
	return rec, nil
}

// List returns recommendations matching every set filter field.
func (s *RecommendationService) List(ctx context.Context, filter ListFilter) ([]*model.Recommendation, error) {
	recs, err := s.store.ListRecommendations(ctx, repository.RecommendationFilter{
		QueryID:   filter.QueryID,
		UserEmail: filter.UserEmail,
	})
	if err != nil {
		return nil, mapStoreError(err, ErrRecommendationNotFound, "list recommendations")
	}
	return recs, nil
}

// Delete removes a recommendation authored by callerEmail and decrements the
// referenced query's counter.
func (s *RecommendationService) Delete(ctx context.Context, id, callerEmail string) error {
	rec, err := s.store.GetRecommendation(ctx, id)
	if err != nil {
		return mapStoreError(err, ErrRecommendationNotFound, "get recommendation")
	}
	if !rec.OwnedBy(callerEmail) {
		return ErrForbidden
	}

	if err := s.store.RemoveRecommendation(ctx, rec); err != nil {
		return mapStoreError(err, ErrRecommendationNotFound, "remove recommendation")
	}

	s.metrics.IncRecommendationDeleted()
	return nil
}

// ListForUser returns every recommendation made on queries owned by
// callerEmail, each joined with its query's title.
func (s *RecommendationService) ListForUser(ctx context.Context, callerEmail string) ([]model.UserRecommendation, error) {
	if callerEmail == "" {
		return nil, ErrUnauthenticated
	}

	owned, err := s.store.ListQueriesByOwner(ctx, callerEmail)
	if err != nil {
		return nil, mapStoreError(err, ErrQueryNotFound, "list owned queries")
	}
	if len(owned) == 0 {
		return []model.UserRecommendation{}, nil
	}

	titles := make(map[string]string, len(owned))
	ids := make([]string, 0, len(owned))
	for _, q := range owned {
		titles[q.ID] = q.Title()
		ids = append(ids, q.ID)
	}

	recs, err := s.store.ListRecommendationsForQueries(ctx, ids)
	if err != nil {
		return nil, mapStoreError(err, ErrRecommendationNotFound, "list recommendations for queries")
	}

	out := make([]model.UserRecommendation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.UserRecommendation{
			Recommendation: rec,
			QueryTitle:     titles[rec.QueryID],
		})
	}
	return out, nil
}
