package interfaces

import (
	"context"
	"time"
)

// Reservation is a dequeued queue entry. ID addresses the reservation for
// Complete/Fail and is independent of the payload contents.
type Reservation struct {
	ID      string
	Payload string
}

// JobQueue is the reliable hand-off queue used between the API/scheduler
// (producers) and the workers (consumers).
//
// Delivery is at-least-once: a reservation that is neither completed nor
// failed within the visibility timeout becomes reclaimable, so handlers must
// be idempotent.
type JobQueue interface {
	// Enqueue pushes a payload onto the pending list and returns the
	// reservation id it will be addressed by if dequeued immediately.
	Enqueue(ctx context.Context, queue string, payload string) (string, error)

	// Dequeue atomically moves one payload from pending to processing and
	// returns its reservation. Returns models.ErrNoMessage when the poll
	// timeout elapses with nothing available.
	Dequeue(ctx context.Context, queue string) (*Reservation, error)

	// Complete removes a reserved payload from processing and deletes its
	// reservation key.
	Complete(ctx context.Context, queue string, id string) error

	// Fail moves a reserved payload into the failed bucket together with the
	// error message.
	Fail(ctx context.Context, queue string, id string, errMsg string) error

	// Schedule registers a payload for delivery no earlier than delay from
	// now.
	Schedule(ctx context.Context, queue string, payload string, delay time.Duration) (string, error)

	// Length returns the number of pending payloads.
	Length(ctx context.Context, queue string) (int64, error)

	// Ping verifies connectivity to the queue backend.
	Ping(ctx context.Context) error
}
