package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the job stream, run locks, progress pub/sub and caches.
var RedisClient *redis.Client

// RedisOptions builds client options from REDIS_ADDR (or REDIS_URI/REDIS_URL).
// A redis:// or rediss:// URL is parsed as is; a bare address also reads
// REDIS_PASSWORD and REDIS_DB.
func RedisOptions() (*redis.Options, error) {
	val := os.Getenv("REDIS_ADDR")
	if val == "" {
		val = os.Getenv("REDIS_URI")
	}
	if val == "" {
		val = os.Getenv("REDIS_URL")
	}
	if val == "" {
		return nil, errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) environment variable is not set")
	}

	if strings.HasPrefix(val, "redis://") || strings.HasPrefix(val, "rediss://") {
		return redis.ParseURL(val)
	}
	opt := &redis.Options{Addr: val, Password: os.Getenv("REDIS_PASSWORD")}
	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("REDIS_DB: invalid database %q", db)
		}
		opt.DB = n
	}
	return opt, nil
}

func InitRedis() error {
	opt, err := RedisOptions()
	if err != nil {
		return err
	}
	// Stream reads block for several seconds; keep the read timeout above that.
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = 10 * time.Second
	}
	RedisClient = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return RedisClient.Ping(ctx).Err()
}
