package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewQuery_ServerFieldsOverrideClient(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := &Identity{Subject: "uid-a", Email: "a@x.com", Name: "Alice"}
	fields := Fields{
		"title":               "Laptop?",
		"email":               "spoof@evil.com",
		"name":                "Mallory",
		"recommendationCount": float64(99),
		"_id":                 "client-id",
	}

	q := NewQuery(fields, id, now)

	if q.Email != "a@x.com" {
		t.Errorf("Email = %q, want a@x.com", q.Email)
	}
	if q.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", q.Name)
	}
	if q.RecommendationCount != 0 {
		t.Errorf("RecommendationCount = %d, want 0", q.RecommendationCount)
	}
	if q.ID != "" {
		t.Errorf("ID should be left for the store, got %q", q.ID)
	}
	for _, k := range QueryServerKeys {
		if _, ok := q.Fields[k]; ok {
			t.Errorf("server key %q leaked into Fields", k)
		}
	}
	if q.Fields["title"] != "Laptop?" {
		t.Errorf("title = %v, want Laptop?", q.Fields["title"])
	}
	if _, ok := fields["email"]; !ok {
		t.Error("NewQuery must not mutate the caller's fields")
	}
}

func TestNewQuery_NameFallsBackToEmail(t *testing.T) {
	t.Parallel()

	q := NewQuery(Fields{}, &Identity{Email: "b@x.com"}, time.Now())
	if q.Name != "b@x.com" {
		t.Errorf("Name = %q, want b@x.com", q.Name)
	}
}

func TestQuery_Title(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields Fields
		want   string
	}{
		{"queryTitle wins", Fields{"queryTitle": "Phones", "title": "Other"}, "Phones"},
		{"title fallback", Fields{"title": "Laptop?"}, "Laptop?"},
		{"non-string ignored", Fields{"queryTitle": 42}, ""},
		{"none", Fields{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Query{Fields: tt.fields}
			if got := q.Title(); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuery_MarshalJSON_Flat(t *testing.T) {
	t.Parallel()

	q := &Query{
		ID:                  "q1",
		Email:               "a@x.com",
		Name:                "Alice",
		Date:                time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		RecommendationCount: 2,
		Fields:              Fields{"title": "Laptop?", "email": "ignored"},
	}

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got["_id"] != "q1" {
		t.Errorf("_id = %v, want q1", got["_id"])
	}
	if got["email"] != "a@x.com" {
		t.Errorf("email = %v, fixed key must win over fields", got["email"])
	}
	if got["date"] != "2025-03-01T12:00:00.000Z" {
		t.Errorf("date = %v", got["date"])
	}
	if got["recommendationCount"] != float64(2) {
		t.Errorf("recommendationCount = %v", got["recommendationCount"])
	}
	if got["title"] != "Laptop?" {
		t.Errorf("title = %v", got["title"])
	}

	var back Query
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal into Query failed: %v", err)
	}
	if !back.Date.Equal(q.Date) || back.RecommendationCount != 2 || back.Title() != "Laptop?" {
		t.Errorf("decoded query mismatch: %+v", back)
	}
}

func TestQuery_OwnedBy(t *testing.T) {
	t.Parallel()

	q := &Query{Email: "a@x.com"}
	if !q.OwnedBy("a@x.com") {
		t.Error("expected owner match")
	}
	if q.OwnedBy("b@x.com") {
		t.Error("expected non-owner")
	}
	if (&Query{}).OwnedBy("") {
		t.Error("empty email must never own a record")
	}
}
