package memory

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/datasage-io/datasage/pkg/llms"
)

const sessionCollection = "agent_sessions"

// MongoSessionService is the durable backend. Each session is one document;
// a TTL index on lastAccess expires idle sessions after the configured
// time-to-live.
type MongoSessionService struct {
	collection *mongo.Collection
}

type sessionDoc struct {
	ID         string       `bson:"_id"`
	Messages   []messageDoc `bson:"messages"`
	LastAccess time.Time    `bson:"lastAccess"`
}

type messageDoc struct {
	Role       string    `bson:"role"`
	Content    string    `bson:"content"`
	ToolCallID string    `bson:"toolCallId,omitempty"`
	Name       string    `bson:"name,omitempty"`
	Timestamp  time.Time `bson:"timestamp"`
}

// NewMongoSessionService creates the durable session service and ensures the
// TTL index exists.
func NewMongoSessionService(ctx context.Context, db *mongo.Database, ttl time.Duration) (*MongoSessionService, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session TTL must be positive")
	}

	collection := db.Collection(sessionCollection)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "lastAccess", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create TTL index: %v", ErrBackend, err)
	}

	return &MongoSessionService{collection: collection}, nil
}

func (s *MongoSessionService) AppendMessages(ctx context.Context, sessionID string, messages []llms.Message) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	docs := make([]messageDoc, 0, len(messages))
	for _, m := range messages {
		docs = append(docs, messageDoc{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
			Timestamp:  m.Timestamp,
		})
	}

	_, err := s.collection.UpdateByID(ctx, sessionID, bson.M{
		"$push": bson.M{"messages": bson.M{"$each": docs}},
		"$set":  bson.M{"lastAccess": time.Now().UTC()},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: append failed for session %s: %v", ErrBackend, sessionID, err)
	}
	return nil
}

func (s *MongoSessionService) GetMessages(ctx context.Context, sessionID string) ([]llms.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	var doc sessionDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return []llms.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read failed for session %s: %v", ErrBackend, sessionID, err)
	}

	out := make([]llms.Message, 0, len(doc.Messages))
	for _, m := range doc.Messages {
		out = append(out, llms.Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
			Timestamp:  m.Timestamp,
		})
	}
	return out, nil
}

func (s *MongoSessionService) GetMessageCount(ctx context.Context, sessionID string) (int, error) {
	messages, err := s.GetMessages(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return len(messages), nil
}

func (s *MongoSessionService) ClearSession(ctx context.Context, sessionID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": sessionID})
	if err != nil {
		return fmt.Errorf("%w: clear failed for session %s: %v", ErrBackend, sessionID, err)
	}
	return nil
}

var _ SessionService = (*MongoSessionService)(nil)
