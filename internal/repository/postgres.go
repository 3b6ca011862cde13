package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"

	"github.com/smartpick/smartpick/internal/model"
)

// schema is applied on startup. Fixed attributes get columns; opaque client
// fields live in a JSONB document. seq preserves insertion order.
const schema = `
CREATE TABLE IF NOT EXISTS queries (
	id                   TEXT PRIMARY KEY,
	seq                  BIGSERIAL,
	email                TEXT NOT NULL,
	name                 TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	recommendation_count BIGINT NOT NULL DEFAULT 0,
	fields               JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_queries_email ON queries (email);
CREATE INDEX IF NOT EXISTS idx_queries_recommendation_count ON queries (recommendation_count DESC);

CREATE TABLE IF NOT EXISTS recommendations (
	id         TEXT PRIMARY KEY,
	seq        BIGSERIAL,
	query_id   TEXT NOT NULL,
	user_email TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	fields     JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_recommendations_query_id ON recommendations (query_id);
CREATE INDEX IF NOT EXISTS idx_recommendations_user_email ON recommendations (user_email);
`

const (
	queryColumns          = `id, email, name, created_at, recommendation_count, fields`
	recommendationColumns = `id, query_id, user_email, created_at, fields`
)

// Postgres is a Store backed by PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool, verifies it and applies the schema.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}

// Pool returns the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// CreateQuery inserts a query.
func (p *Postgres) CreateQuery(ctx context.Context, q *model.Query) error {
	fields, err := json.Marshal(q.Fields.Clone())
	if err != nil {
		return fmt.Errorf("failed to encode query fields: %w", err)
	}

	id := ulid.Make().String()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO queries (id, email, name, created_at, recommendation_count, fields)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, q.Email, q.Name, q.Date, q.RecommendationCount, fields)
	if err != nil {
		return fmt.Errorf("failed to create query: %w", err)
	}

	q.ID = id
	return nil
}

// ListQueries returns all queries in insertion order.
func (p *Postgres) ListQueries(ctx context.Context) ([]*model.Query, error) {
	return p.queryQueries(ctx, `SELECT `+queryColumns+` FROM queries ORDER BY seq`)
}

// GetQuery retrieves a query by id.
func (p *Postgres) GetQuery(ctx context.Context, id string) (*model.Query, error) {
	if !validULID(id) {
		return nil, ErrInvalidID
	}

	q, err := scanQuery(p.pool.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get query: %w", err)
	}
	return q, nil
}

// DeleteQuery removes a query row.
func (p *Postgres) DeleteQuery(ctx context.Context, id string) error {
	if !validULID(id) {
		return ErrInvalidID
	}

	tag, err := p.pool.Exec(ctx, `DELETE FROM queries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementRecommendationCount adds delta to the counter.
func (p *Postgres) IncrementRecommendationCount(ctx context.Context, id string, delta int64) (bool, error) {
	if !validULID(id) {
		return false, ErrInvalidID
	}
	return incrementQuery(ctx, p.pool, id, delta)
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func incrementQuery(ctx context.Context, db execer, id string, delta int64) (bool, error) {
	tag, err := db.Exec(ctx, `UPDATE queries SET recommendation_count = recommendation_count + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return false, fmt.Errorf("failed to update recommendation count: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetRecommendationCount swaps the counter only if it still holds from.
func (p *Postgres) SetRecommendationCount(ctx context.Context, id string, from, to int64) (bool, error) {
	if !validULID(id) {
		return false, ErrInvalidID
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE queries SET recommendation_count = $2 WHERE id = $1 AND recommendation_count = $3`,
		id, to, from)
	if err != nil {
		return false, fmt.Errorf("failed to set recommendation count: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TopQueries orders by counter, then insertion order.
func (p *Postgres) TopQueries(ctx context.Context, limit int) ([]*model.Query, error) {
	return p.queryQueries(ctx,
		`SELECT `+queryColumns+` FROM queries ORDER BY recommendation_count DESC, seq LIMIT $1`, limit)
}

// ListQueriesByOwner returns queries created by email.
func (p *Postgres) ListQueriesByOwner(ctx context.Context, email string) ([]*model.Query, error) {
	return p.queryQueries(ctx, `SELECT `+queryColumns+` FROM queries WHERE email = $1 ORDER BY seq`, email)
}

// AddRecommendation inserts the recommendation and bumps the counter in one transaction.
func (p *Postgres) AddRecommendation(ctx context.Context, rec *model.Recommendation) error {
	if !validULID(rec.QueryID) {
		return ErrInvalidID
	}

	fields, err := json.Marshal(rec.Fields.Clone())
	if err != nil {
		return fmt.Errorf("failed to encode recommendation fields: %w", err)
	}

	id := ulid.Make().String()
	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO recommendations (id, query_id, user_email, created_at, fields)
			VALUES ($1, $2, $3, $4, $5)
		`, id, rec.QueryID, rec.UserEmail, rec.Date, fields)
		if err != nil {
			return fmt.Errorf("failed to create recommendation: %w", err)
		}
		_, err = incrementQuery(ctx, tx, rec.QueryID, 1)
		return err
	})
	if err != nil {
		return err
	}

	rec.ID = id
	return nil
}

// GetRecommendation retrieves a recommendation by id.
func (p *Postgres) GetRecommendation(ctx context.Context, id string) (*model.Recommendation, error) {
	if !validULID(id) {
		return nil, ErrInvalidID
	}

	rec, err := scanRecommendation(p.pool.QueryRow(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return rec, nil
}

// ListRecommendations filters by query and/or author.
func (p *Postgres) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]*model.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.QueryID != "" {
		query += fmt.Sprintf(" AND query_id = $%d", argIndex)
		args = append(args, filter.QueryID)
		argIndex++
	}
	if filter.UserEmail != "" {
		query += fmt.Sprintf(" AND user_email = $%d", argIndex)
		args = append(args, filter.UserEmail)
	}
	query += " ORDER BY seq"

	return p.queryRecommendations(ctx, query, args...)
}

// RemoveRecommendation deletes the recommendation and decrements the counter in one transaction.
func (p *Postgres) RemoveRecommendation(ctx context.Context, rec *model.Recommendation) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM recommendations WHERE id = $1`, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to delete recommendation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = incrementQuery(ctx, tx, rec.QueryID, -1)
		return err
	})
}

// ListRecommendationsForQueries returns recommendations attached to any of queryIDs.
func (p *Postgres) ListRecommendationsForQueries(ctx context.Context, queryIDs []string) ([]*model.Recommendation, error) {
	if len(queryIDs) == 0 {
		return []*model.Recommendation{}, nil
	}
	return p.queryRecommendations(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE query_id = ANY($1::text[]) ORDER BY seq`,
		pq.Array(queryIDs))
}

// CountRecommendationsByQuery groups recommendations by query_id.
func (p *Postgres) CountRecommendationsByQuery(ctx context.Context) (map[string]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT query_id, COUNT(*) FROM recommendations GROUP BY query_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count recommendations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var queryID string
		var n int64
		if err := rows.Scan(&queryID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation count: %w", err)
		}
		counts[queryID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendation counts: %w", err)
	}
	return counts, nil
}

func (p *Postgres) queryQueries(ctx context.Context, sql string, args ...any) ([]*model.Query, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Query, 0)
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queries: %w", err)
	}
	return out, nil
}

func (p *Postgres) queryRecommendations(ctx context.Context, sql string, args ...any) ([]*model.Recommendation, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Recommendation, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendations: %w", err)
	}
	return out, nil
}

// scanQuery scans a single row into a Query. pgx.Rows satisfies pgx.Row.
func scanQuery(row pgx.Row) (*model.Query, error) {
	var q model.Query
	var createdAt time.Time
	var fields []byte
	if err := row.Scan(&q.ID, &q.Email, &q.Name, &createdAt, &q.RecommendationCount, &fields); err != nil {
		return nil, err
	}
	q.Date = createdAt.UTC()
	if err := decodeFields(fields, &q.Fields); err != nil {
		return nil, err
	}
	return &q, nil
}

func scanRecommendation(row pgx.Row) (*model.Recommendation, error) {
	var r model.Recommendation
	var createdAt time.Time
	var fields []byte
	if err := row.Scan(&r.ID, &r.QueryID, &r.UserEmail, &createdAt, &fields); err != nil {
		return nil, err
	}
	r.Date = createdAt.UTC()
	if err := decodeFields(fields, &r.Fields); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeFields(data []byte, dst *model.Fields) error {
	*dst = model.Fields{}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode fields: %w", err)
	}
	return nil
}
