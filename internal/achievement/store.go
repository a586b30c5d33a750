package achievement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
	"github.com/gakuen-dev/biz-ops-api/pkg/config"
	"github.com/gakuen-dev/biz-ops-api/pkg/export"
)

// Document field names shared by the score and playback collections. The
// nightly batch writes one "column" document describing the schema and one
// "record" document per student for each (contract, course) pair.
const (
	fieldID         = "_id"
	fieldContractID = "contract_id"
	fieldCourseID   = "course_id"
	fieldDocType    = "document_type"

	docTypeColumn = "column"
	docTypeRecord = "record"
)

// Store reads batch-produced achievement documents from MongoDB.
type Store struct {
	scores    *mongo.Collection
	playbacks *mongo.Collection
	limit     int
	logger    *zap.Logger
}

// NewStore wires the score and playback collections.
func NewStore(client *mongo.Client, cfg config.AchievementConfig, logger *zap.Logger) *Store {
	db := client.Database(cfg.Database)
	return &Store{
		scores:    db.Collection(cfg.ScoreCollection),
		playbacks: db.Collection(cfg.PlaybackCollection),
		limit:     cfg.RecordLimit,
		logger:    logger,
	}
}

func (s *Store) collection(target models.AchievementTarget) (*mongo.Collection, error) {
	switch target {
	case models.TargetScore:
		return s.scores, nil
	case models.TargetPlayback:
		return s.playbacks, nil
	default:
		return nil, fmt.Errorf("unknown achievement target %q", target)
	}
}

// metaProjection hides the bookkeeping fields so only display columns
// reach the caller.
func metaProjection() bson.D {
	return bson.D{
		{Key: fieldID, Value: 0},
		{Key: fieldContractID, Value: 0},
		{Key: fieldCourseID, Value: 0},
		{Key: fieldDocType, Value: 0},
	}
}

// Columns returns the ordered column schema written by the last batch run,
// or nil when no batch has produced output for this contract and course.
func (s *Store) Columns(ctx context.Context, target models.AchievementTarget, contractID int64, courseID string) ([]export.ColumnSpec, error) {
	coll, err := s.collection(target)
	if err != nil {
		return nil, err
	}

	filter := bson.D{
		{Key: fieldDocType, Value: docTypeColumn},
		{Key: fieldContractID, Value: contractID},
		{Key: fieldCourseID, Value: courseID},
	}
	opts := options.FindOne().SetProjection(metaProjection())

	var doc bson.D
	if err := coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find column document: %w", err)
	}

	columns := make([]export.ColumnSpec, 0, len(doc))
	for _, elem := range doc {
		typ, _ := elem.Value.(string)
		columns = append(columns, export.ColumnSpec{Field: elem.Key, Type: export.ColumnType(typ)})
	}
	return columns, nil
}

// Records returns record documents in insertion order with the query's
// filter conditions pushed down to the collection. A nil usernames slice
// means no username restriction; an empty non-nil slice matches nothing.
func (s *Store) Records(ctx context.Context, q models.AchievementQuery, usernames []string) ([]models.AchievementRecord, error) {
	coll, err := s.collection(q.Target)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetProjection(metaProjection()).
		SetSort(bson.D{{Key: fieldID, Value: 1}}).
		SetSkip(int64(q.Offset))
	// Limit 0 applies the configured page cap; a negative limit streams
	// the whole result set for exports.
	if q.Limit == 0 {
		opts.SetLimit(int64(s.limit))
	} else if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := coll.Find(ctx, recordFilter(q, usernames), opts)
	if err != nil {
		return nil, fmt.Errorf("find record documents: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.AchievementRecord
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode record document: %w", err)
		}
		records = append(records, normalizeRecord(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate record documents: %w", err)
	}
	return records, nil
}

// Count returns the number of record documents matching the query without
// the offset/limit window.
func (s *Store) Count(ctx context.Context, q models.AchievementQuery, usernames []string) (int64, error) {
	coll, err := s.collection(q.Target)
	if err != nil {
		return 0, err
	}
	count, err := coll.CountDocuments(ctx, recordFilter(q, usernames))
	if err != nil {
		return 0, fmt.Errorf("count record documents: %w", err)
	}
	return count, nil
}

// normalizeRecord converts driver-native values into the types the
// formatter understands. Mongo dates arrive as primitive.DateTime and
// numeric section values may decode as int32/int64.
func normalizeRecord(doc bson.M) models.AchievementRecord {
	record := make(models.AchievementRecord, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case primitive.DateTime:
			record[k] = val.Time().UTC()
		case time.Time:
			record[k] = val.UTC()
		case int32:
			record[k] = int(val)
		case int64:
			record[k] = int(val)
		default:
			record[k] = v
		}
	}
	return record
}
