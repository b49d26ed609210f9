package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxRunEvents bounds the events kept on a run document.
const MaxRunEvents = 20

type RunRepository interface {
	Create(ctx context.Context, run *models.PipelineRun) error
	GetByRunID(ctx context.Context, runID string) (*models.PipelineRun, error)
	ListByProject(ctx context.Context, projectID, stage string, limit int64) ([]models.PipelineRun, error)
	// SetProgress stores the latest progress and appends the event.
	SetProgress(ctx context.Context, runID, pipelineStage string, progress models.RunProgress, event models.RunEvent) error
	Finish(ctx context.Context, runID, pipelineStage, message, errorCode, recordingID string) error
}

type runRepo struct {
	col *mongo.Collection
}

func NewRunRepo(db *mongo.Database) RunRepository {
	return &runRepo{col: db.Collection("pipeline_runs")}
}

func (r *runRepo) Create(ctx context.Context, run *models.PipelineRun) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, run)
	return err
}

func (r *runRepo) GetByRunID(ctx context.Context, runID string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	err := r.col.FindOne(ctx, bson.M{"run_id": runID}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &run, err
}

func (r *runRepo) ListByProject(ctx context.Context, projectID, stage string, limit int64) ([]models.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := bson.M{"project_id": projectID}
	if stage != "" {
		filter["stage"] = stage
	}
	cur, err := r.col.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.PipelineRun
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runRepo) SetProgress(ctx context.Context, runID, pipelineStage string, progress models.RunProgress, event models.RunEvent) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"run_id": runID},
		bson.M{
			"$set": bson.M{
				"pipeline_stage": pipelineStage,
				"progress":       progress,
				"updated_at":     time.Now().UTC(),
			},
			"$push": bson.M{"events": bson.M{
				"$each":  []models.RunEvent{event},
				"$slice": -MaxRunEvents,
			}},
		},
	)
	return err
}

func (r *runRepo) Finish(ctx context.Context, runID, pipelineStage, message, errorCode, recordingID string) error {
	now := time.Now().UTC()
	set := bson.M{
		"pipeline_stage": pipelineStage,
		"message":        message,
		"error_code":     errorCode,
		"updated_at":     now,
		"finished_at":    now,
	}
	if recordingID != "" {
		set["recording_id"] = recordingID
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"run_id": runID}, bson.M{"$set": set})
	return err
}
