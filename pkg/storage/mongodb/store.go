// Package mongodb implements the audit log store using MongoDB
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-hl7gateway/pkg/storage"
	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

// Store implements storage.LogStore using MongoDB. Records are spread
// across partitions by the partition_key field (a fixed-length attempt-id
// prefix) and expire automatically through a TTL index on expires_at.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logs   *mongo.Collection
}

// Config holds MongoDB connection settings.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// NewStore connects to MongoDB and prepares the audit collection.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	collection := cfg.Collection
	if collection == "" {
		collection = "transmission_logs"
	}

	s := &Store{
		client: client,
		db:     db,
		logs:   db.Collection(collection),
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.logs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "attempt_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "partition_key", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "protocol", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		// Document-level retention: each record carries its own
		// expires_at, set from the configured retention window.
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return fmt.Errorf("creating transmission log indexes: %w", err)
	}
	return nil
}

// SaveLog appends one audit entry. The unique attempt_id index turns a
// duplicate save into storage.ErrDuplicateLog.
func (s *Store) SaveLog(ctx context.Context, log *storage.TransmissionLog) error {
	if log.AttemptID == "" {
		return fmt.Errorf("transmission log has no attempt id")
	}
	if log.PartitionKey == "" {
		log.PartitionKey = storage.PartitionKey(log.AttemptID)
	}

	_, err := s.logs.InsertOne(ctx, log)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateLog, log.AttemptID)
	}
	if err != nil {
		return fmt.Errorf("saving transmission log: %w", err)
	}
	return nil
}

// GetLog retrieves the entry for an attempt id.
func (s *Store) GetLog(ctx context.Context, attemptID string) (*storage.TransmissionLog, error) {
	var log storage.TransmissionLog
	err := s.logs.FindOne(ctx, bson.M{"attempt_id": attemptID}).Decode(&log)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: %s", storage.ErrLogNotFound, attemptID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading transmission log: %w", err)
	}
	return &log, nil
}

// ListLogs returns matching entries newest first.
func (s *Store) ListLogs(ctx context.Context, filter *storage.LogFilter) ([]*storage.TransmissionLog, error) {
	query := bson.M{}
	if filter != nil {
		if filter.PatientID != "" {
			query["patient_id"] = filter.PatientID
		}
		if filter.Protocol != "" {
			query["protocol"] = filter.Protocol
		}
		if filter.Success != nil {
			query["success"] = *filter.Success
		}
		created := bson.M{}
		if !filter.From.IsZero() {
			created["$gte"] = filter.From
		}
		if !filter.To.IsZero() {
			created["$lte"] = filter.To
		}
		if len(created) > 0 {
			query["created_at"] = created
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil && filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.logs.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("querying transmission logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []*storage.TransmissionLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decoding transmission logs: %w", err)
	}
	return logs, nil
}

// Statistics aggregates the window [from, to] with an aggregation
// pipeline grouped by protocol.
func (s *Store) Statistics(ctx context.Context, from, to time.Time) (*storage.Statistics, error) {
	match := bson.M{}
	created := bson.M{}
	if !from.IsZero() {
		created["$gte"] = from
	}
	if !to.IsZero() {
		created["$lte"] = to
	}
	if len(created) > 0 {
		match["created_at"] = created
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$protocol",
			"total":     bson.M{"$sum": 1},
			"succeeded": bson.M{"$sum": bson.M{"$cond": bson.A{"$success", 1, 0}}},
			"totalMS":   bson.M{"$sum": "$response_time_ms"},
		}}},
	}

	cursor, err := s.logs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating transmission statistics: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Protocol  string `bson:"_id"`
		Total     int64  `bson:"total"`
		Succeeded int64  `bson:"succeeded"`
		TotalMS   int64  `bson:"totalMS"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding transmission statistics: %w", err)
	}

	stats := &storage.Statistics{
		From:       from,
		To:         to,
		ByProtocol: make(map[transmission.Protocol]storage.ProtocolCount),
	}
	var totalMS int64
	for _, row := range rows {
		stats.Total += row.Total
		stats.Succeeded += row.Succeeded
		totalMS += row.TotalMS
		stats.ByProtocol[transmission.Protocol(row.Protocol)] = storage.ProtocolCount{
			Total:     row.Total,
			Succeeded: row.Succeeded,
		}
	}
	stats.Failed = stats.Total - stats.Succeeded
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
		stats.AverageResponseTime = time.Duration(totalMS/stats.Total) * time.Millisecond
	}
	return stats, nil
}

// PurgeOlderThan removes entries created before cutoff and returns the
// removed count. This complements the TTL index for explicit, on-demand
// retention enforcement.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.logs.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("purging transmission logs: %w", err)
	}
	return res.DeletedCount, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
