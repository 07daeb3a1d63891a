package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/config"
)

type journeyDoc struct {
	ID         string    `bson:"_id"`
	StartURL   string    `bson:"start_url"`
	Status     string    `bson:"status"`
	StepCount  int       `bson:"step_count"`
	AvgScore   float64   `bson:"avg_score"`
	Payload    string    `bson:"payload"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
}

// MongoStore is a MongoDB-backed Store. Expiry uses a TTL index on finished_at.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

// OpenMongoStore connects, pings and ensures indexes.
func OpenMongoStore(ctx context.Context, cfg config.MongoConfig, ttl time.Duration, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := NewMongoStore(client, cfg.Database, cfg.Collection, logger)
	if err := s.EnsureIndexes(ctx, ttl); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewMongoStore wraps a connected client.
func NewMongoStore(client *mongo.Client, database, collection string, logger *zap.Logger) *MongoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: logger.With(zap.String("component", "mongo_store")),
	}
}

// EnsureIndexes creates the listing index and, when ttl > 0, the expiry index.
func (s *MongoStore) EnsureIndexes(ctx context.Context, ttl time.Duration) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "started_at", Value: -1}}},
	}
	if ttl > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "finished_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl / time.Second)),
		})
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create journey indexes: %w", err)
	}
	return nil
}

// Save upserts j by id.
func (s *MongoStore) Save(ctx context.Context, j *journey.Journey) error {
	if err := validate(j); err != nil {
		return err
	}
	data, err := encode(j)
	if err != nil {
		return err
	}
	doc := journeyDoc{
		ID:         j.ID,
		StartURL:   j.StartURL,
		Status:     string(j.Status),
		StepCount:  len(j.Steps),
		AvgScore:   j.AverageScore(),
		Payload:    string(data),
		StartedAt:  j.StartedAt.UTC(),
		FinishedAt: j.FinishedAt.UTC(),
	}
	_, err = s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: j.ID}}, doc, options.Replace().SetUpsert(true))
	return err
}

// Get retrieves a journey by ID
func (s *MongoStore) Get(ctx context.Context, id string) (*journey.Journey, error) {
	var doc journeyDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(doc.Payload))
}

// List retrieves journeys newest first.
func (s *MongoStore) List(ctx context.Context, filter Filter) ([]*journey.Journey, error) {
	query := bson.D{}
	if filter.Status != "" {
		query = append(query, bson.E{Key: "status", Value: string(filter.Status)})
	}
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var docs []journeyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]*journey.Journey, 0, len(docs))
	for _, doc := range docs {
		j, err := decode([]byte(doc.Payload))
		if err != nil {
			s.logger.Warn("skipping undecodable journey", zap.String("journey_id", doc.ID), zap.Error(err))
			continue
		}
		result = append(result, j)
	}
	return result, nil
}

// Delete removes a journey
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks if the store is healthy
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
