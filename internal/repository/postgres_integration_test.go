//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/smartpick/smartpick/internal/testutil"
)

func TestIntegrationPostgresStore(t *testing.T) {
	databaseURL := testutil.RequireEnv(t, "DATABASE_URL")

	runStoreContract(t, func(t *testing.T) (Store, string) {
		ctx := context.Background()

		s, err := NewPostgres(ctx, databaseURL)
		if err != nil {
			t.Fatalf("NewPostgres failed: %v", err)
		}

		unlock, err := testutil.AcquireDBLock(ctx, s.Pool())
		if err != nil {
			t.Fatalf("AcquireDBLock failed: %v", err)
		}
		if err := testutil.TruncateTables(ctx, s.Pool(), QueriesCollection, RecommendationsCollection); err != nil {
			t.Fatalf("TruncateTables failed: %v", err)
		}

		t.Cleanup(func() {
			_ = unlock()
			_ = s.Close(ctx)
		})
		return s, ulid.Make().String()
	})
}
