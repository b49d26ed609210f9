package mongo

import (
	"context"
	"time"

	"github.com/archstudio/intake/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SegmentRetention is how long segment diagnostics are kept.
const SegmentRetention = 7 * 24 * time.Hour

type SegmentRepository interface {
	// Upsert writes the record keyed by run and segment index.
	Upsert(ctx context.Context, rec *models.SegmentRecord) error
	ListByRun(ctx context.Context, runID string) ([]models.SegmentRecord, error)
}

type segmentRepo struct {
	col *mongo.Collection
}

func NewSegmentRepo(db *mongo.Database) SegmentRepository {
	return &segmentRepo{col: db.Collection("run_segments")}
}

func (r *segmentRepo) Upsert(ctx context.Context, rec *models.SegmentRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.Timestamp.Add(SegmentRetention)
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"run_id": rec.RunID, "segment_index": rec.SegmentIndex},
		bson.M{"$set": bson.M{
			"start_offset_seconds": rec.StartOffsetSeconds,
			"size_bytes":           rec.SizeBytes,
			"remote_url":           rec.RemoteURL,
			"upload_status":        rec.UploadStatus,
			"stt_status":           rec.STTStatus,
			"text_length":          rec.TextLength,
			"error":                rec.Error,
			"timestamp":            rec.Timestamp,
			"expires_at":           rec.ExpiresAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *segmentRepo) ListByRun(ctx context.Context, runID string) ([]models.SegmentRecord, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"run_id": runID},
		options.Find().SetSort(bson.D{{Key: "segment_index", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SegmentRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
