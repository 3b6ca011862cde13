package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/smartpick/smartpick/internal/model"
)

// MongoConfig configures the MongoDB store.
type MongoConfig struct {
	URI      string
	Database string
	// Transactions wraps each recommendation write and its counter update in a
	// multi-document transaction. Requires a replica set.
	Transactions bool
}

// Mongo is a Store backed by MongoDB.
type Mongo struct {
	client          *mongo.Client
	queries         *mongo.Collection
	recommendations *mongo.Collection
	transactions    bool
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(serverAPI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}).
		SetMaxPoolSize(10).
		SetMinPoolSize(2)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	m := &Mongo{
		client:          client,
		queries:         db.Collection(QueriesCollection),
		recommendations: db.Collection(RecommendationsCollection),
		transactions:    cfg.Transactions,
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.queries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: model.KeyEmail, Value: 1}}},
		{Keys: bson.D{{Key: model.KeyRecommendationCount, Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create query indexes: %w", err)
	}

	_, err = m.recommendations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: model.KeyQueryID, Value: 1}}},
		{Keys: bson.D{{Key: model.KeyUserEmail, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create recommendation indexes: %w", err)
	}
	return nil
}

// Ping checks MongoDB connectivity.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// CreateQuery inserts a query document.
func (m *Mongo) CreateQuery(ctx context.Context, q *model.Query) error {
	oid := primitive.NewObjectID()

	doc := bson.M{}
	for k, v := range q.Fields {
		doc[k] = v
	}
	doc[model.KeyID] = oid
	doc[model.KeyEmail] = q.Email
	doc[model.KeyName] = q.Name
	doc[model.KeyDate] = model.FormatDate(q.Date)
	doc[model.KeyRecommendationCount] = q.RecommendationCount

	if _, err := m.queries.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert query: %w", err)
	}

	q.ID = oid.Hex()
	return nil
}

// ListQueries returns every query document.
func (m *Mongo) ListQueries(ctx context.Context) ([]*model.Query, error) {
	return m.findQueries(ctx, bson.M{})
}

// GetQuery fetches a query by ObjectID.
func (m *Mongo) GetQuery(ctx context.Context, id string) (*model.Query, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	err = m.queries.FindOne(ctx, bson.M{model.KeyID: oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get query: %w", err)
	}

	return queryFromDocument(doc), nil
}

// DeleteQuery removes a query document.
func (m *Mongo) DeleteQuery(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	res, err := m.queries.DeleteOne(ctx, bson.M{model.KeyID: oid})
	if err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementRecommendationCount applies $inc to the query's counter.
func (m *Mongo) IncrementRecommendationCount(ctx context.Context, id string, delta int64) (bool, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return false, err
	}
	return m.incrementQuery(ctx, oid, delta)
}

func (m *Mongo) incrementQuery(ctx context.Context, oid primitive.ObjectID, delta int64) (bool, error) {
	res, err := m.queries.UpdateOne(ctx,
		bson.M{model.KeyID: oid},
		bson.M{"$inc": bson.M{model.KeyRecommendationCount: delta}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update recommendation count: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// SetRecommendationCount swaps the query's counter only if it still holds from.
func (m *Mongo) SetRecommendationCount(ctx context.Context, id string, from, to int64) (bool, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return false, err
	}

	res, err := m.queries.UpdateOne(ctx,
		bson.M{model.KeyID: oid, model.KeyRecommendationCount: from},
		bson.M{"$set": bson.M{model.KeyRecommendationCount: to}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to set recommendation count: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// TopQueries sorts by counter descending. Equal counters come back in server order.
func (m *Mongo) TopQueries(ctx context.Context, limit int) ([]*model.Query, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: model.KeyRecommendationCount, Value: -1}}).
		SetLimit(int64(limit))
	return m.findQueries(ctx, bson.M{}, opts)
}

// ListQueriesByOwner returns the caller's queries projected to id, email and title.
func (m *Mongo) ListQueriesByOwner(ctx context.Context, email string) ([]*model.Query, error) {
	opts := options.Find().SetProjection(bson.M{
		model.KeyID:         1,
		model.KeyEmail:      1,
		model.KeyQueryTitle: 1,
		model.KeyTitle:      1,
	})
	return m.findQueries(ctx, bson.M{model.KeyEmail: email}, opts)
}

func (m *Mongo) findQueries(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*model.Query, error) {
	cursor, err := m.queries.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to find queries: %w", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode queries: %w", err)
	}

	out := make([]*model.Query, 0, len(docs))
	for _, doc := range docs {
		out = append(out, queryFromDocument(doc))
	}
	return out, nil
}

// AddRecommendation inserts the recommendation, then increments the query counter.
// Without transactions a failure between the two writes leaves the counter short;
// the reconciler repairs it.
func (m *Mongo) AddRecommendation(ctx context.Context, rec *model.Recommendation) error {
	queryOID, err := parseObjectID(rec.QueryID)
	if err != nil {
		return err
	}

	oid := primitive.NewObjectID()
	doc := bson.M{}
	for k, v := range rec.Fields {
		doc[k] = v
	}
	doc[model.KeyID] = oid
	doc[model.KeyQueryID] = rec.QueryID
	doc[model.KeyUserEmail] = rec.UserEmail
	doc[model.KeyDate] = model.FormatDate(rec.Date)

	err = m.withTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.recommendations.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("failed to insert recommendation: %w", err)
		}
		_, err := m.incrementQuery(ctx, queryOID, 1)
		return err
	})
	if err != nil {
		return err
	}

	rec.ID = oid.Hex()
	return nil
}

// GetRecommendation fetches a recommendation by ObjectID.
func (m *Mongo) GetRecommendation(ctx context.Context, id string) (*model.Recommendation, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	err = m.recommendations.FindOne(ctx, bson.M{model.KeyID: oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}

	return recommendationFromDocument(doc), nil
}

// ListRecommendations returns recommendations matching filter.
func (m *Mongo) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]*model.Recommendation, error) {
	q := bson.M{}
	if filter.QueryID != "" {
		q[model.KeyQueryID] = filter.QueryID
	}
	if filter.UserEmail != "" {
		q[model.KeyUserEmail] = filter.UserEmail
	}
	return m.findRecommendations(ctx, q)
}

// RemoveRecommendation deletes the recommendation, then decrements the query counter.
func (m *Mongo) RemoveRecommendation(ctx context.Context, rec *model.Recommendation) error {
	oid, err := parseObjectID(rec.ID)
	if err != nil {
		return err
	}

	return m.withTransaction(ctx, func(ctx context.Context) error {
		res, err := m.recommendations.DeleteOne(ctx, bson.M{model.KeyID: oid})
		if err != nil {
			return fmt.Errorf("failed to delete recommendation: %w", err)
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}

		// A dangling or malformed queryId has no counter to adjust.
		queryOID, err := parseObjectID(rec.QueryID)
		if err != nil {
			return nil
		}
		_, err = m.incrementQuery(ctx, queryOID, -1)
		return err
	})
}

// ListRecommendationsForQueries uses $in over the queryId field.
func (m *Mongo) ListRecommendationsForQueries(ctx context.Context, queryIDs []string) ([]*model.Recommendation, error) {
	if len(queryIDs) == 0 {
		return []*model.Recommendation{}, nil
	}
	return m.findRecommendations(ctx, bson.M{model.KeyQueryID: bson.M{"$in": queryIDs}})
}

// CountRecommendationsByQuery groups recommendations by queryId.
func (m *Mongo) CountRecommendationsByQuery(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + model.KeyQueryID},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := m.recommendations.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate recommendations: %w", err)
	}

	var rows []struct {
		QueryID string `bson:"_id"`
		Count   int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.QueryID] = row.Count
	}
	return counts, nil
}

func (m *Mongo) findRecommendations(ctx context.Context, filter bson.M) ([]*model.Recommendation, error) {
	cursor, err := m.recommendations.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find recommendations: %w", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}

	out := make([]*model.Recommendation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, recommendationFromDocument(doc))
	}
	return out, nil
}

// withTransaction runs fn inside a session transaction when enabled, or directly otherwise.
func (m *Mongo) withTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactions {
		return fn(ctx)
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

// queryFromDocument maps a BSON document onto a Query. Unknown keys become Fields.
func queryFromDocument(doc bson.M) *model.Query {
	q := &model.Query{
		ID:                  documentID(doc[model.KeyID]),
		Email:               stringValue(doc[model.KeyEmail]),
		Name:                stringValue(doc[model.KeyName]),
		Date:                timeValue(doc[model.KeyDate]),
		RecommendationCount: int64Value(doc[model.KeyRecommendationCount]),
	}
	q.Fields = model.Fields(doc).Without(model.QueryServerKeys...)
	return q
}

func recommendationFromDocument(doc bson.M) *model.Recommendation {
	r := &model.Recommendation{
		ID:        documentID(doc[model.KeyID]),
		QueryID:   stringValue(doc[model.KeyQueryID]),
		UserEmail: stringValue(doc[model.KeyUserEmail]),
		Date:      timeValue(doc[model.KeyDate]),
	}
	r.Fields = model.Fields(doc).Without(model.KeyID, model.KeyQueryID, model.KeyUserEmail, model.KeyDate)
	return r
}

func documentID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// int64Value accepts the numeric BSON types a counter may have been written with.
func int64Value(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// timeValue accepts ISO strings (as written by this service) and native BSON dates.
func timeValue(v any) time.Time {
	switch t := v.(type) {
	case string:
		parsed, err := model.ParseDate(t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	default:
		return time.Time{}
	}
}
