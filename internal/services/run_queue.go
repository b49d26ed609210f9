package services

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// JobStream is the Redis stream consumed by the pipeline workers.
	JobStream = "pipeline:jobs"
)

func runLockKey(sourceID string) string { return "run:lock:" + sourceID }
func cancelKey(runID string) string     { return "run:" + runID + ":cancel" }

// ProgressChannel is the pub/sub channel carrying progress of a run.
func ProgressChannel(runID string) string { return "run:" + runID + ":progress" }

// RunQueue holds the shared run state kept outside the databases.
type RunQueue interface {
	// Lock reserves sourceID for runID. ok is false when another run holds it.
	Lock(ctx context.Context, sourceID, runID string, ttl time.Duration) (ok bool, err error)
	// Unlock releases the lock only when runID still owns it.
	Unlock(ctx context.Context, sourceID, runID string) error
	Enqueue(ctx context.Context, runID string) error
	RequestCancel(ctx context.Context, runID string, ttl time.Duration) error
	CancelRequested(ctx context.Context, runID string) (bool, error)
	Publish(ctx context.Context, runID string, payload []byte) error
}

type redisRunQueue struct {
	rdb *redis.Client
}

func NewRedisRunQueue(rdb *redis.Client) RunQueue {
	return &redisRunQueue{rdb: rdb}
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (q *redisRunQueue) Lock(ctx context.Context, sourceID, runID string, ttl time.Duration) (bool, error) {
	return q.rdb.SetNX(ctx, runLockKey(sourceID), runID, ttl).Result()
}

func (q *redisRunQueue) Unlock(ctx context.Context, sourceID, runID string) error {
	err := unlockScript.Run(ctx, q.rdb, []string{runLockKey(sourceID)}, runID).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (q *redisRunQueue) Enqueue(ctx context.Context, runID string) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: JobStream,
		Values: map[string]any{"run_id": runID},
	}).Err()
}

func (q *redisRunQueue) RequestCancel(ctx context.Context, runID string, ttl time.Duration) error {
	return q.rdb.Set(ctx, cancelKey(runID), "1", ttl).Err()
}

func (q *redisRunQueue) CancelRequested(ctx context.Context, runID string) (bool, error) {
	n, err := q.rdb.Exists(ctx, cancelKey(runID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *redisRunQueue) Publish(ctx context.Context, runID string, payload []byte) error {
	return q.rdb.Publish(ctx, ProgressChannel(runID), payload).Err()
}

// ProgressFeed delivers the progress messages published for a run.
type ProgressFeed interface {
	// Subscribe returns the message channel and a function releasing the
	// subscription.
	Subscribe(ctx context.Context, runID string) (<-chan []byte, func() error, error)
}

type redisProgressFeed struct {
	rdb *redis.Client
}

func NewRedisProgressFeed(rdb *redis.Client) ProgressFeed {
	return &redisProgressFeed{rdb: rdb}
}

func (f *redisProgressFeed) Subscribe(ctx context.Context, runID string) (<-chan []byte, func() error, error) {
	pubsub := f.rdb.Subscribe(ctx, ProgressChannel(runID))
	// Wait for the subscription confirmation so no message published right
	// after Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close, nil
}
