package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoClient.Database(MongoDatabaseName())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	segments := db.Collection("run_segments")
	_, err := segments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "segment_index", Value: 1}},
			Options: options.Index().
				SetName("uniq_run_segment").
				SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	runs := db.Collection("pipeline_runs")
	_, err = runs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_run_id").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "stage", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_project_stage_created"),
		},
		{
			Keys:    bson.D{{Key: "source_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_source_created"),
		},
	})
	return err
}
