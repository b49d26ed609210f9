package config

import "testing"

func TestMongoClientOptions(t *testing.T) {
	t.Setenv("MONGO_MAX_POOL", "")
	t.Setenv("MONGO_FORCE_TLS12", "")
	opts, err := mongoClientOptions("mongodb://localhost:27017")
	if err != nil {
		t.Fatalf("mongoClientOptions: %v", err)
	}
	if opts.MaxPoolSize == nil || *opts.MaxPoolSize != 20 {
		t.Fatalf("unexpected pool size %v", opts.MaxPoolSize)
	}
	if opts.TLSConfig != nil {
		t.Fatal("tls config must be opt-in")
	}

	t.Setenv("MONGO_MAX_POOL", "64")
	t.Setenv("MONGO_FORCE_TLS12", "true")
	opts, err = mongoClientOptions("mongodb://localhost:27017")
	if err != nil {
		t.Fatalf("mongoClientOptions: %v", err)
	}
	if *opts.MaxPoolSize != 64 || opts.TLSConfig == nil {
		t.Fatalf("overrides not applied")
	}

	t.Setenv("MONGO_MAX_POOL", "0")
	if _, err := mongoClientOptions("mongodb://localhost:27017"); err == nil {
		t.Fatal("expected an error for an empty pool")
	}
}

func TestMongoDatabaseName(t *testing.T) {
	t.Setenv("MONGO_DB", "")
	if got := MongoDatabaseName(); got != "intake" {
		t.Fatalf("unexpected default %q", got)
	}
	t.Setenv("MONGO_DB", "intake_test")
	if got := MongoDatabaseName(); got != "intake_test" {
		t.Fatalf("unexpected override %q", got)
	}
}
