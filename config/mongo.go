package config

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var MongoClient *mongo.Client

// MongoDatabaseName returns MONGO_DB, defaulting to "intake".
func MongoDatabaseName() string {
	if name := os.Getenv("MONGO_DB"); name != "" {
		return name
	}
	return "intake"
}

// MongoDatabase returns the service database. InitMongo must have succeeded.
func MongoDatabase() *mongo.Database {
	return MongoClient.Database(MongoDatabaseName())
}

// InitMongo connects to MONGO_URI and pings the server.
func InitMongo() error {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		return errors.New("MONGO_URI environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts, err := mongoClientOptions(uri)
	if err != nil {
		return err
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	MongoClient = client
	return nil
}

// mongoClientOptions sizes the pool for the worker pool plus request traffic.
// MONGO_FORCE_TLS12 pins TLS 1.2 for networks whose middleboxes break 1.3.
func mongoClientOptions(uri string) (*options.ClientOptions, error) {
	pool := uint64(20)
	if v := os.Getenv("MONGO_MAX_POOL"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("MONGO_MAX_POOL: invalid size %q", v)
		}
		pool = n
	}
	opts := options.Client().ApplyURI(uri).
		SetAppName("intake").
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(pool).
		SetMinPoolSize(1)

	if os.Getenv("MONGO_FORCE_TLS12") == "true" {
		opts = opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}
	return opts, opts.Validate()
}
