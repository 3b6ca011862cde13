// Package service provides business logic for queries and recommendations.
package service

import (
	"errors"
	"fmt"

	"github.com/smartpick/smartpick/internal/repository"
)

// Service errors.
var (
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidInput           = errors.New("invalid input")
	ErrQueryNotFound          = errors.New("query not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
)

// TopQueriesLimit is the number of queries returned by the top view.
const TopQueriesLimit = 3

// mapStoreError translates repository errors into service errors.
// notFound is returned for repository.ErrNotFound.
func mapStoreError(err, notFound error, op string) error {
	switch {
	case errors.Is(err, repository.ErrInvalidID):
		return ErrInvalidID
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
