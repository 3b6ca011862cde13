package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartpick/smartpick/internal/model"
)

// storeFactory returns a fresh, empty store and an id that is well-formed for
// that store but does not exist.
type storeFactory func(t *testing.T) (Store, string)

var (
	alice = &model.Identity{Subject: "uid-a", Email: "a@x.com", Name: "Alice"}
	bob   = &model.Identity{Subject: "uid-b", Email: "b@x.com"}
)

func mustCreateQuery(t *testing.T, s Store, owner *model.Identity, title string) *model.Query {
	t.Helper()
	q := model.NewQuery(model.Fields{"queryTitle": title}, owner, time.Now())
	if err := s.CreateQuery(context.Background(), q); err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}
	if q.ID == "" {
		t.Fatal("CreateQuery did not assign an id")
	}
	return q
}

func mustAddRecommendation(t *testing.T, s Store, author *model.Identity, queryID, text string) *model.Recommendation {
	t.Helper()
	rec := model.NewRecommendation(queryID, model.Fields{"text": text}, author, time.Now())
	if err := s.AddRecommendation(context.Background(), rec); err != nil {
		t.Fatalf("AddRecommendation failed: %v", err)
	}
	return rec
}

func countOf(t *testing.T, s Store, id string) int64 {
	t.Helper()
	q, err := s.GetQuery(context.Background(), id)
	if err != nil {
		t.Fatalf("GetQuery(%s) failed: %v", id, err)
	}
	return q.RecommendationCount
}

// runStoreContract exercises the behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("CreateAndGetQuery", func(t *testing.T) {
		s, _ := newStore(t)
		q := mustCreateQuery(t, s, alice, "Laptop?")

		got, err := s.GetQuery(ctx, q.ID)
		if err != nil {
			t.Fatalf("GetQuery failed: %v", err)
		}
		if got.Email != "a@x.com" || got.Name != "Alice" {
			t.Errorf("owner mismatch: %q %q", got.Email, got.Name)
		}
		if got.Title() != "Laptop?" {
			t.Errorf("Title() = %q, want Laptop?", got.Title())
		}
		if got.RecommendationCount != 0 {
			t.Errorf("RecommendationCount = %d, want 0", got.RecommendationCount)
		}
		if got.Date.IsZero() {
			t.Error("Date should be set")
		}
	})

	t.Run("GetQueryErrors", func(t *testing.T) {
		s, missing := newStore(t)

		if _, err := s.GetQuery(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing id: expected ErrNotFound, got %v", err)
		}
		if _, err := s.GetQuery(ctx, "not-an-id"); !errors.Is(err, ErrInvalidID) {
			t.Errorf("malformed id: expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("ListQueries", func(t *testing.T) {
		s, _ := newStore(t)
		mustCreateQuery(t, s, alice, "one")
		mustCreateQuery(t, s, bob, "two")

		all, err := s.ListQueries(ctx)
		if err != nil {
			t.Fatalf("ListQueries failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 queries, got %d", len(all))
		}
	})

	t.Run("DeleteQueryLeavesRecommendations", func(t *testing.T) {
		s, missing := newStore(t)
		q := mustCreateQuery(t, s, alice, "Laptop?")
		mustAddRecommendation(t, s, bob, q.ID, "Dell XPS")

		if err := s.DeleteQuery(ctx, q.ID); err != nil {
			t.Fatalf("DeleteQuery failed: %v", err)
		}
		if _, err := s.GetQuery(ctx, q.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.DeleteQuery(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting missing query, got %v", err)
		}

		recs, err := s.ListRecommendations(ctx, RecommendationFilter{QueryID: q.ID})
		if err != nil {
			t.Fatalf("ListRecommendations failed: %v", err)
		}
		if len(recs) != 1 {
			t.Errorf("expected orphaned recommendation to survive, got %d", len(recs))
		}
	})

	t.Run("CounterFollowsRecommendations", func(t *testing.T) {
		s, _ := newStore(t)
		q := mustCreateQuery(t, s, alice, "Laptop?")

		rec := mustAddRecommendation(t, s, bob, q.ID, "Dell XPS")
		if rec.ID == "" {
			t.Fatal("AddRecommendation did not assign an id")
		}
		if got := countOf(t, s, q.ID); got != 1 {
			t.Errorf("count after add = %d, want 1", got)
		}

		stored, err := s.GetRecommendation(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetRecommendation failed: %v", err)
		}
		if stored.QueryID != q.ID || stored.UserEmail != "b@x.com" || stored.Fields["text"] != "Dell XPS" {
			t.Errorf("stored recommendation mismatch: %+v", stored)
		}

		if err := s.RemoveRecommendation(ctx, stored); err != nil {
			t.Fatalf("RemoveRecommendation failed: %v", err)
		}
		if got := countOf(t, s, q.ID); got != 0 {
			t.Errorf("count after remove = %d, want 0", got)
		}
		if err := s.RemoveRecommendation(ctx, stored); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound removing twice, got %v", err)
		}
	})

	t.Run("DanglingQueryReference", func(t *testing.T) {
		s, missing := newStore(t)

		rec := mustAddRecommendation(t, s, bob, missing, "orphan")
		if _, err := s.GetRecommendation(ctx, rec.ID); err != nil {
			t.Errorf("dangling recommendation should be stored: %v", err)
		}

		matched, err := s.IncrementRecommendationCount(ctx, missing, 1)
		if err != nil {
			t.Fatalf("IncrementRecommendationCount failed: %v", err)
		}
		if matched {
			t.Error("increment on missing query should not match")
		}

		bad := model.NewRecommendation("not-an-id", nil, bob, time.Now())
		if err := s.AddRecommendation(ctx, bad); !errors.Is(err, ErrInvalidID) {
			t.Errorf("expected ErrInvalidID for malformed queryId, got %v", err)
		}
	})

	t.Run("DecrementIsNotClamped", func(t *testing.T) {
		s, _ := newStore(t)
		q := mustCreateQuery(t, s, alice, "Laptop?")

		if _, err := s.IncrementRecommendationCount(ctx, q.ID, -1); err != nil {
			t.Fatalf("IncrementRecommendationCount failed: %v", err)
		}
		if got := countOf(t, s, q.ID); got != -1 {
			t.Errorf("count = %d, want -1", got)
		}
	})

	t.Run("SetRecommendationCountComparesFirst", func(t *testing.T) {
		s, _ := newStore(t)
		q := mustCreateQuery(t, s, alice, "Laptop?")

		ok, err := s.SetRecommendationCount(ctx, q.ID, 3, 9)
		if err != nil {
			t.Fatalf("SetRecommendationCount failed: %v", err)
		}
		if ok {
			t.Error("swap from a stale value should miss")
		}
		if got := countOf(t, s, q.ID); got != 0 {
			t.Errorf("count = %d, want untouched 0", got)
		}

		ok, err = s.SetRecommendationCount(ctx, q.ID, 0, 4)
		if err != nil || !ok {
			t.Fatalf("SetRecommendationCount = %v, %v; want true, nil", ok, err)
		}
		if got := countOf(t, s, q.ID); got != 4 {
			t.Errorf("count = %d, want 4", got)
		}
	})

	t.Run("TopQueries", func(t *testing.T) {
		s, _ := newStore(t)
		counts := []int64{2, 5, 0, 7, 1}
		for i, n := range counts {
			q := mustCreateQuery(t, s, alice, "q")
			if ok, err := s.SetRecommendationCount(ctx, q.ID, 0, n); err != nil || !ok {
				t.Fatalf("SetRecommendationCount #%d = %v, %v", i, ok, err)
			}
		}

		top, err := s.TopQueries(ctx, 3)
		if err != nil {
			t.Fatalf("TopQueries failed: %v", err)
		}
		if len(top) != 3 {
			t.Fatalf("expected 3 queries, got %d", len(top))
		}
		want := []int64{7, 5, 2}
		for i, q := range top {
			if q.RecommendationCount != want[i] {
				t.Errorf("top[%d] = %d, want %d", i, q.RecommendationCount, want[i])
			}
		}
	})

	t.Run("ListRecommendationsFilters", func(t *testing.T) {
		s, _ := newStore(t)
		q1 := mustCreateQuery(t, s, alice, "one")
		q2 := mustCreateQuery(t, s, alice, "two")
		mustAddRecommendation(t, s, bob, q1.ID, "b on 1")
		mustAddRecommendation(t, s, alice, q1.ID, "a on 1")
		mustAddRecommendation(t, s, bob, q2.ID, "b on 2")

		tests := []struct {
			name   string
			filter RecommendationFilter
			want   int
		}{
			{"no filter", RecommendationFilter{}, 3},
			{"by query", RecommendationFilter{QueryID: q1.ID}, 2},
			{"by user", RecommendationFilter{UserEmail: "b@x.com"}, 2},
			{"by both", RecommendationFilter{QueryID: q1.ID, UserEmail: "b@x.com"}, 1},
			{"no match", RecommendationFilter{UserEmail: "nobody@x.com"}, 0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				recs, err := s.ListRecommendations(ctx, tt.filter)
				if err != nil {
					t.Fatalf("ListRecommendations failed: %v", err)
				}
				if len(recs) != tt.want {
					t.Errorf("got %d recommendations, want %d", len(recs), tt.want)
				}
				for _, r := range recs {
					if !tt.filter.Matches(r) {
						t.Errorf("recommendation %s does not match filter", r.ID)
					}
				}
			})
		}
	})

	t.Run("OwnerQueriesAndJoinSource", func(t *testing.T) {
		s, _ := newStore(t)
		mine := mustCreateQuery(t, s, alice, "mine")
		theirs := mustCreateQuery(t, s, bob, "theirs")
		mustAddRecommendation(t, s, bob, mine.ID, "for alice")
		mustAddRecommendation(t, s, alice, theirs.ID, "for bob")

		owned, err := s.ListQueriesByOwner(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("ListQueriesByOwner failed: %v", err)
		}
		if len(owned) != 1 || owned[0].ID != mine.ID || owned[0].Title() != "mine" {
			t.Fatalf("unexpected owned queries: %+v", owned)
		}

		recs, err := s.ListRecommendationsForQueries(ctx, []string{mine.ID})
		if err != nil {
			t.Fatalf("ListRecommendationsForQueries failed: %v", err)
		}
		if len(recs) != 1 || recs[0].QueryID != mine.ID {
			t.Errorf("unexpected recommendations: %+v", recs)
		}

		empty, err := s.ListRecommendationsForQueries(ctx, nil)
		if err != nil || len(empty) != 0 {
			t.Errorf("expected no recommendations for empty id set, got %d (%v)", len(empty), err)
		}
	})

	t.Run("CountRecommendationsByQuery", func(t *testing.T) {
		s, _ := newStore(t)
		q1 := mustCreateQuery(t, s, alice, "one")
		q2 := mustCreateQuery(t, s, alice, "two")
		mustAddRecommendation(t, s, bob, q1.ID, "x")
		mustAddRecommendation(t, s, bob, q1.ID, "y")
		mustAddRecommendation(t, s, bob, q2.ID, "z")

		counts, err := s.CountRecommendationsByQuery(ctx)
		if err != nil {
			t.Fatalf("CountRecommendationsByQuery failed: %v", err)
		}
		if counts[q1.ID] != 2 || counts[q2.ID] != 1 {
			t.Errorf("unexpected counts: %v", counts)
		}
	})
}
