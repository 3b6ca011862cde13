package model

import "time"

// Fixed recommendation keys.
const (
	KeyQueryID   = "queryId"
	KeyUserEmail = "userEmail"
)

// RecommendationServerKeys lists the recommendation keys owned by the server.
// queryId is client-supplied and therefore not included.
var RecommendationServerKeys = []string{KeyID, KeyUserEmail, KeyDate}

// Recommendation is one user's suggestion attached to a Query.
type Recommendation struct {
	ID        string
	QueryID   string
	UserEmail string
	Date      time.Time
	Fields    Fields
}

// NewRecommendation builds a recommendation on queryID authored by id.
func NewRecommendation(queryID string, fields Fields, id *Identity, now time.Time) *Recommendation {
	return &Recommendation{
		QueryID:   queryID,
		UserEmail: id.Email,
		Date:      now.UTC(),
		Fields:    fields.Without(KeyID, KeyQueryID, KeyUserEmail, KeyDate),
	}
}

// OwnedBy reports whether email authored the recommendation.
func (r *Recommendation) OwnedBy(email string) bool {
	return email != "" && r.UserEmail == email
}

func (r *Recommendation) fixed() map[string]any {
	return map[string]any{
		KeyID:        r.ID,
		KeyQueryID:   r.QueryID,
		KeyUserEmail: r.UserEmail,
		KeyDate:      FormatDate(r.Date),
	}
}

// MarshalJSON renders the recommendation as a single flat JSON object.
func (r *Recommendation) MarshalJSON() ([]byte, error) {
	return flatten(r.Fields, r.fixed())
}

// UnmarshalJSON parses a flat JSON object produced by MarshalJSON.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	f, err := unflatten(data)
	if err != nil {
		return err
	}

	r.ID = popString(f, KeyID)
	r.QueryID = popString(f, KeyQueryID)
	r.UserEmail = popString(f, KeyUserEmail)
	if r.Date, err = popDate(f, KeyDate); err != nil {
		return err
	}
	r.Fields = f
	return nil
}

// UserRecommendation is a Recommendation joined with the title of the query it answers.
type UserRecommendation struct {
	*Recommendation
	QueryTitle string
}

// MarshalJSON adds queryTitle to the flat recommendation object when it is known.
// A queryTitle stored on the recommendation itself is never shown; the title
// always comes from the joined query.
func (u UserRecommendation) MarshalJSON() ([]byte, error) {
	fixed := u.Recommendation.fixed()
	if u.QueryTitle != "" {
		fixed[KeyQueryTitle] = u.QueryTitle
	}
	return flatten(u.Recommendation.Fields.Without(KeyQueryTitle), fixed)
}
