package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/models"
)

func newTestQueue(t *testing.T) (*miniredis.Miniredis, *RedisQueue) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := newRedisQueueWithClient(client, 5*time.Minute, 500*time.Millisecond, arbor.NewLogger())
	t.Cleanup(func() { q.Close() })

	return mr, q
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	mr, q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "test", "payload-1"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	res, err := q.Dequeue(ctx, "test")
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if res.Payload != "payload-1" {
		t.Errorf("Expected payload-1, got %q", res.Payload)
	}
	if res.ID == "" {
		t.Error("Expected a reservation id")
	}

	// The payload moved to processing and the reservation key was written.
	processing, err := mr.List(processingKey("test"))
	if err != nil {
		t.Fatalf("Failed to read processing list: %v", err)
	}
	if len(processing) != 1 || processing[0] != "payload-1" {
		t.Errorf("Expected payload in processing list, got %v", processing)
	}
	if !mr.Exists(reservationKey("test", res.ID)) {
		t.Error("Expected reservation key to exist")
	}
}

func TestRedisQueue_FIFOOrder(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	for _, payload := range []string{"first", "second", "third"} {
		if _, err := q.Enqueue(ctx, "test", payload); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	for _, want := range []string{"first", "second", "third"} {
		res, err := q.Dequeue(ctx, "test")
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if res.Payload != want {
			t.Errorf("Expected %q, got %q", want, res.Payload)
		}
	}
}

func TestRedisQueue_DequeueEmptyReturnsNoMessage(t *testing.T) {
	_, q := newTestQueue(t)

	_, err := q.Dequeue(context.Background(), "test")
	if !errors.Is(err, models.ErrNoMessage) {
		t.Errorf("Expected ErrNoMessage, got %v", err)
	}
}

func TestRedisQueue_CompleteRemovesReservation(t *testing.T) {
	mr, q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "test", "payload-1"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	res, err := q.Dequeue(ctx, "test")
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	if err := q.Complete(ctx, "test", res.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	processing, err := mr.List(processingKey("test"))
	if err == nil && len(processing) != 0 {
		t.Errorf("Expected empty processing list, got %v", processing)
	}
	if mr.Exists(reservationKey("test", res.ID)) {
		t.Error("Expected reservation key to be deleted")
	}

	// Completing again is a no-op.
	if err := q.Complete(ctx, "test", res.ID); err != nil {
		t.Errorf("Expected idempotent complete, got %v", err)
	}
}

func TestRedisQueue_FailMovesToFailedQueue(t *testing.T) {
	mr, q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "test", "payload-1"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	res, err := q.Dequeue(ctx, "test")
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	if err := q.Fail(ctx, "test", res.ID, "boom"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	failed, err := mr.List(failedKey("test"))
	if err != nil {
		t.Fatalf("Failed to read failed list: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("Expected one failed envelope, got %d", len(failed))
	}

	var envelope failedEnvelope
	if err := json.Unmarshal([]byte(failed[0]), &envelope); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if envelope.Payload != "payload-1" {
		t.Errorf("Expected payload-1 in envelope, got %q", envelope.Payload)
	}
	if envelope.Error != "boom" {
		t.Errorf("Expected error boom, got %q", envelope.Error)
	}

	if mr.Exists(reservationKey("test", res.ID)) {
		t.Error("Expected reservation key to be deleted")
	}
}

func TestRedisQueue_VisibilityTimeoutExpiry(t *testing.T) {
	mr, q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "test", "payload-1"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	res, err := q.Dequeue(ctx, "test")
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	mr.FastForward(6 * time.Minute)

	// The reservation expired but the payload is still discoverable in
	// processing for the reaper.
	if mr.Exists(reservationKey("test", res.ID)) {
		t.Error("Expected reservation key to have expired")
	}
	processing, err := mr.List(processingKey("test"))
	if err != nil {
		t.Fatalf("Failed to read processing list: %v", err)
	}
	if len(processing) != 1 {
		t.Errorf("Expected payload still in processing, got %v", processing)
	}
}

func TestRedisQueue_ScheduleAndPromote(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	// A payload scheduled in the future must not be promoted yet.
	if _, err := q.Schedule(ctx, "test", "later", time.Hour); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	promoted, err := q.promoteDue(ctx, "test")
	if err != nil {
		t.Fatalf("promoteDue failed: %v", err)
	}
	if promoted != 0 {
		t.Errorf("Expected 0 promoted, got %d", promoted)
	}
	if _, err := q.Dequeue(ctx, "test"); !errors.Is(err, models.ErrNoMessage) {
		t.Errorf("Expected ErrNoMessage before the delay, got %v", err)
	}

	// A due payload is promoted onto the pending list.
	if _, err := q.Schedule(ctx, "test", "now", 0); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	promoted, err = q.promoteDue(ctx, "test")
	if err != nil {
		t.Fatalf("promoteDue failed: %v", err)
	}
	if promoted != 1 {
		t.Errorf("Expected 1 promoted, got %d", promoted)
	}

	res, err := q.Dequeue(ctx, "test")
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if res.Payload != "now" {
		t.Errorf("Expected promoted payload, got %q", res.Payload)
	}
}

func TestRedisQueue_Length(t *testing.T) {
	_, q := newTestQueue(t)
	ctx := context.Background()

	n, err := q.Length(ctx, "test")
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected empty queue, got %d", n)
	}

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, "test", "p"); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	n, err = q.Length(ctx, "test")
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected length 3, got %d", n)
	}
}
