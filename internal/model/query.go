package model

import (
	"time"
)

// Fixed query keys. Any client value under these keys is replaced by the server.
const (
	KeyID                  = "_id"
	KeyEmail               = "email"
	KeyName                = "name"
	KeyDate                = "date"
	KeyRecommendationCount = "recommendationCount"

	// KeyQueryTitle is the title field written by the web client; KeyTitle is accepted as a fallback.
	KeyQueryTitle = "queryTitle"
	KeyTitle      = "title"
)

// QueryServerKeys lists the query keys owned by the server.
var QueryServerKeys = []string{KeyID, KeyEmail, KeyName, KeyDate, KeyRecommendationCount}

// Query is a user's request for product recommendations.
type Query struct {
	ID                  string
	Email               string
	Name                string
	Date                time.Time
	RecommendationCount int64
	Fields              Fields
}

// NewQuery builds a query owned by id from client-supplied fields.
// Server-owned keys in fields are discarded.
func NewQuery(fields Fields, id *Identity, now time.Time) *Query {
	return &Query{
		Email:               id.Email,
		Name:                id.DisplayName(),
		Date:                now.UTC(),
		RecommendationCount: 0,
		Fields:              fields.Without(QueryServerKeys...),
	}
}

// Title returns the query's human-readable title, if it has one.
func (q *Query) Title() string {
	if t := q.Fields.String(KeyQueryTitle); t != "" {
		return t
	}
	return q.Fields.String(KeyTitle)
}

// OwnedBy reports whether email owns the query.
func (q *Query) OwnedBy(email string) bool {
	return email != "" && q.Email == email
}

// MarshalJSON renders the query as a single flat JSON object.
func (q *Query) MarshalJSON() ([]byte, error) {
	return flatten(q.Fields, map[string]any{
		KeyID:                  q.ID,
		KeyEmail:               q.Email,
		KeyName:                q.Name,
		KeyDate:                FormatDate(q.Date),
		KeyRecommendationCount: q.RecommendationCount,
	})
}

// UnmarshalJSON parses a flat JSON object produced by MarshalJSON.
func (q *Query) UnmarshalJSON(data []byte) error {
	f, err := unflatten(data)
	if err != nil {
		return err
	}

	q.ID = popString(f, KeyID)
	q.Email = popString(f, KeyEmail)
	q.Name = popString(f, KeyName)
	if q.Date, err = popDate(f, KeyDate); err != nil {
		return err
	}
	if n, ok := f[KeyRecommendationCount].(float64); ok {
		q.RecommendationCount = int64(n)
	}
	delete(f, KeyRecommendationCount)
	q.Fields = f
	return nil
}
