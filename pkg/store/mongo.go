package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore implements Store over a MongoDB database.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoStore connects to MongoDB and pings it to fail fast on bad URIs.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database name is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{
		client:   client,
		database: client.Database(database),
	}, nil
}

// Database exposes the underlying database handle for collaborators that ride
// the same connection, such as the durable session backend.
func (s *MongoStore) Database() *mongo.Database {
	return s.database
}

func (s *MongoStore) Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error) {
	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(toBSON(opts.Projection))
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(toBSON(opts.Sort))
	}

	filter := opts.Filter
	if filter == nil {
		filter = map[string]any{}
	}

	cursor, err := s.database.Collection(collection).Find(ctx, toBSON(filter), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeAll(ctx, cursor)
}

func (s *MongoStore) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	if filter == nil {
		filter = map[string]any{}
	}
	return s.database.Collection(collection).CountDocuments(ctx, toBSON(filter))
}

func (s *MongoStore) Aggregate(ctx context.Context, collection string, stages []map[string]any) ([]Document, error) {
	pipeline := make(mongo.Pipeline, 0, len(stages))
	for _, stage := range stages {
		doc := make(bson.D, 0, len(stage))
		for k, v := range stage {
			doc = append(doc, bson.E{Key: k, Value: v})
		}
		pipeline = append(pipeline, doc)
	}

	cursor, err := s.database.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeAll(ctx, cursor)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]Document, error) {
	docs := make([]Document, 0)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, normalize(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func toBSON(m map[string]any) bson.M {
	return bson.M(m)
}

// normalize converts bson-specific values into their JSON-friendly shapes so
// tool results serialize cleanly for the LLM.
func normalize(doc bson.M) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalize(t)
	case bson.D:
		m := make(Document, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		arr := make([]any, len(t))
		for i, item := range t {
			arr[i] = normalizeValue(item)
		}
		return arr
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

var _ Store = (*MongoStore)(nil)
