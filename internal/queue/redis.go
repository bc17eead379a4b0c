package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

// Key layout per queue Q:
//
//	queue:Q       pending payloads (LPUSH producer, blocking right-pop consumer)
//	processing:Q  payloads currently reserved by workers
//	failed:Q      {payload, error} envelopes for post-mortem
//	job:Q:{id}    per-reservation payload copy, expiring after the visibility timeout
//	scheduled:Q   sorted set of payloads scored by absolute execution epoch

// PromoteInterval is how often the promoter scans the scheduled set for due
// payloads.
const PromoteInterval = time.Second

func pendingKey(queue string) string    { return "queue:" + queue }
func processingKey(queue string) string { return "processing:" + queue }
func failedKey(queue string) string     { return "failed:" + queue }
func scheduledKey(queue string) string  { return "scheduled:" + queue }
func reservationKey(queue, id string) string {
	return fmt.Sprintf("job:%s:%s", queue, id)
}

// failedEnvelope wraps a payload with the error that killed it.
type failedEnvelope struct {
	Payload string `json:"payload"`
	Error   string `json:"error"`
}

// RedisQueue implements the reliable hand-off queue on Redis lists. The
// pending-to-processing move is a single BRPOPLPUSH, so a payload is never
// lost between pop and reservation. Delivery is at-least-once.
type RedisQueue struct {
	client            *redis.Client
	visibilityTimeout time.Duration
	pollTimeout       time.Duration
	logger            arbor.ILogger

	promoterStop chan struct{}
	promoterWG   sync.WaitGroup
	closeOnce    sync.Once
}

var _ interfaces.JobQueue = (*RedisQueue)(nil)

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(redisURL string, visibilityTimeout, pollTimeout time.Duration, logger arbor.ILogger) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, common.QueueError(fmt.Errorf("invalid redis url: %w", err))
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, common.QueueError(fmt.Errorf("redis ping failed: %w", err))
	}

	return &RedisQueue{
		client:            client,
		visibilityTimeout: visibilityTimeout,
		pollTimeout:       pollTimeout,
		logger:            logger,
		promoterStop:      make(chan struct{}),
	}, nil
}

// newRedisQueueWithClient wires an existing client, for tests.
func newRedisQueueWithClient(client *redis.Client, visibilityTimeout, pollTimeout time.Duration, logger arbor.ILogger) *RedisQueue {
	return &RedisQueue{
		client:            client,
		visibilityTimeout: visibilityTimeout,
		pollTimeout:       pollTimeout,
		logger:            logger,
		promoterStop:      make(chan struct{}),
	}
}

// Enqueue pushes a payload onto the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, queue string, payload string) (string, error) {
	if err := q.client.LPush(ctx, pendingKey(queue), payload).Err(); err != nil {
		return "", common.QueueError(err)
	}

	q.logger.Debug().
		Str("queue", queue).
		Msg("Enqueued payload")

	return uuid.New().String(), nil
}

// Dequeue atomically moves one payload from pending to processing, mints a
// reservation id and stores the payload under it with the visibility TTL.
// Returns models.ErrNoMessage when the poll timeout elapses.
func (q *RedisQueue) Dequeue(ctx context.Context, queue string) (*interfaces.Reservation, error) {
	payload, err := q.client.BRPopLPush(ctx, pendingKey(queue), processingKey(queue), q.pollTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNoMessage
	}
	if err != nil {
		return nil, common.QueueError(err)
	}

	id := uuid.New().String()
	if err := q.client.SetEx(ctx, reservationKey(queue, id), payload, q.visibilityTimeout).Err(); err != nil {
		return nil, common.QueueError(err)
	}

	return &interfaces.Reservation{ID: id, Payload: payload}, nil
}

// Complete removes the reserved payload from processing and deletes the
// reservation key in one pipeline. Completing an expired reservation is a
// no-op: the payload will be re-delivered and must be handled idempotently.
func (q *RedisQueue) Complete(ctx context.Context, queue string, id string) error {
	key := reservationKey(queue, id)

	payload, err := q.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		q.logger.Warn().
			Str("queue", queue).
			Str("reservation_id", id).
			Msg("Completing expired reservation")
		return nil
	}
	if err != nil {
		return common.QueueError(err)
	}

	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, processingKey(queue), 0, payload)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return common.QueueError(err)
	}
	return nil
}

// Fail moves the reserved payload into the failed bucket wrapped with the
// error message, then deletes the reservation key. The processing entry is
// left for the operator-level reaper.
func (q *RedisQueue) Fail(ctx context.Context, queue string, id string, errMsg string) error {
	key := reservationKey(queue, id)

	payload, err := q.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		q.logger.Warn().
			Str("queue", queue).
			Str("reservation_id", id).
			Msg("Failing expired reservation")
		return nil
	}
	if err != nil {
		return common.QueueError(err)
	}

	envelope, err := json.Marshal(failedEnvelope{Payload: payload, Error: errMsg})
	if err != nil {
		return common.QueueError(err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, failedKey(queue), string(envelope))
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return common.QueueError(err)
	}

	q.logger.Warn().
		Str("queue", queue).
		Str("reservation_id", id).
		Str("error", errMsg).
		Msg("Moved payload to failed queue")

	return nil
}

// Schedule registers a payload for delivery no earlier than delay from now.
func (q *RedisQueue) Schedule(ctx context.Context, queue string, payload string, delay time.Duration) (string, error) {
	executeAt := time.Now().Add(delay).Unix()

	err := q.client.ZAdd(ctx, scheduledKey(queue), redis.Z{
		Score:  float64(executeAt),
		Member: payload,
	}).Err()
	if err != nil {
		return "", common.QueueError(err)
	}

	q.logger.Debug().
		Str("queue", queue).
		Int64("execute_at", executeAt).
		Msg("Scheduled payload")

	return uuid.New().String(), nil
}

// Length returns the number of pending payloads.
func (q *RedisQueue) Length(ctx context.Context, queue string) (int64, error) {
	n, err := q.client.LLen(ctx, pendingKey(queue)).Result()
	if err != nil {
		return 0, common.QueueError(err)
	}
	return n, nil
}

// Ping verifies connectivity to Redis.
func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return common.QueueError(err)
	}
	return nil
}

// StartPromoter begins moving due scheduled payloads onto the pending list
// every interval. Stopped by Close.
func (q *RedisQueue) StartPromoter(queue string, interval time.Duration) {
	q.promoterWG.Add(1)
	go func() {
		defer q.promoterWG.Done()

		q.logger.Info().
			Str("queue", queue).
			Dur("interval", interval).
			Msg("Scheduled-payload promoter started")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-q.promoterStop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				promoted, err := q.promoteDue(ctx, queue)
				cancel()
				if err != nil {
					q.logger.Warn().
						Str("queue", queue).
						Err(err).
						Msg("Failed to promote scheduled payloads")
					continue
				}
				if promoted > 0 {
					q.logger.Debug().
						Str("queue", queue).
						Int("promoted", promoted).
						Msg("Promoted scheduled payloads")
				}
			}
		}
	}()
}

// promoteDue moves every scheduled payload with a score at or before now to
// the pending list. ZREM before LPUSH keeps concurrent promoters from
// double-delivering.
func (q *RedisQueue) promoteDue(ctx context.Context, queue string) (int, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	due, err := q.client.ZRangeByScore(ctx, scheduledKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, payload := range due {
		removed, err := q.client.ZRem(ctx, scheduledKey(queue), payload).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, pendingKey(queue), payload).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// Close stops the promoter and releases the Redis client.
func (q *RedisQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.promoterStop)
	})
	q.promoterWG.Wait()
	return q.client.Close()
}
