// Package repository provides the record store for queries and recommendations.
//
// Three implementations share the Store contract: MongoDB (the production
// document store), PostgreSQL with JSONB documents, and an in-memory store for
// tests and local development.
package repository

import (
	"context"
	"errors"

	"github.com/smartpick/smartpick/internal/model"
)

// Collection names.
const (
	QueriesCollection         = "queries"
	RecommendationsCollection = "recommendations"
)

// Common errors for store operations.
var (
	ErrNotFound  = errors.New("record not found")
	ErrInvalidID = errors.New("invalid record id")
)

// RecommendationFilter narrows ListRecommendations. Empty fields impose no constraint;
// set fields are combined with AND.
type RecommendationFilter struct {
	QueryID   string
	UserEmail string
}

// Matches reports whether rec satisfies the filter.
func (f RecommendationFilter) Matches(rec *model.Recommendation) bool {
	if f.QueryID != "" && rec.QueryID != f.QueryID {
		return false
	}
	if f.UserEmail != "" && rec.UserEmail != f.UserEmail {
		return false
	}
	return true
}

// Store is the persistence contract used by the services.
//
// Counter adjustments against a query that does not exist are silent no-ops.
// Decrements are not clamped at zero.
type Store interface {
	// CreateQuery inserts q and assigns q.ID.
	CreateQuery(ctx context.Context, q *model.Query) error
	// ListQueries returns every query in store order.
	ListQueries(ctx context.Context) ([]*model.Query, error)
	// GetQuery returns ErrInvalidID for malformed ids and ErrNotFound for missing ones.
	GetQuery(ctx context.Context, id string) (*model.Query, error)
	// DeleteQuery removes the query only. Recommendations that reference it are kept.
	DeleteQuery(ctx context.Context, id string) error
	// IncrementRecommendationCount adds delta to the query's counter and reports whether
	// a query matched.
	IncrementRecommendationCount(ctx context.Context, id string, delta int64) (bool, error)
	// SetRecommendationCount replaces the query's counter with to, but only
	// while it still equals from. It reports false when the query is gone or
	// the counter moved.
	SetRecommendationCount(ctx context.Context, id string, from, to int64) (bool, error)
	// TopQueries returns up to limit queries ordered by counter, descending.
	// Order among equal counters is not specified.
	TopQueries(ctx context.Context, limit int) ([]*model.Query, error)
	// ListQueriesByOwner returns the caller's queries. Implementations may
	// project the result to id, email and title fields.
	ListQueriesByOwner(ctx context.Context, email string) ([]*model.Query, error)

	// AddRecommendation inserts rec, assigns rec.ID and increments the referenced
	// query's counter by one.
	AddRecommendation(ctx context.Context, rec *model.Recommendation) error
	GetRecommendation(ctx context.Context, id string) (*model.Recommendation, error)
	ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]*model.Recommendation, error)
	// RemoveRecommendation deletes rec and decrements the referenced query's counter by one.
	RemoveRecommendation(ctx context.Context, rec *model.Recommendation) error
	// ListRecommendationsForQueries returns recommendations whose queryId is in queryIDs.
	ListRecommendationsForQueries(ctx context.Context, queryIDs []string) ([]*model.Recommendation, error)
	// CountRecommendationsByQuery returns the live recommendation count per queryId.
	CountRecommendationsByQuery(ctx context.Context) (map[string]int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
