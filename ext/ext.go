package ext

import (
	"context"
	"time"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/job"
)

// Observer is the base interface all observers must implement.
type Observer interface {
	// Name returns a unique human-readable name for the observer.
	Name() string
}

// ──────────────────────────────────────────────────
// Scheduler lifecycle hooks
// ──────────────────────────────────────────────────

// JobAccepted is called after a job is admitted to the queue.
type JobAccepted interface {
	OnJobAccepted(ctx context.Context, j *job.Job) error
}

// JobRejected is called when admission refuses a job outright. The
// status carries the rejection cause (ceiling off, throttled,
// scheduler closing).
type JobRejected interface {
	OnJobRejected(ctx context.Context, j *job.Job, status uplink.Status) error
}

// JobStarted is called when a job leaves the queue for a worker.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobBlocked is called when the front of the queue cannot acquire an
// execution slot and dispatch pauses.
type JobBlocked interface {
	OnJobBlocked(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job's delegate finishes with OK.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called after a job's delegate finishes with a failure.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, status uplink.Status) error
}

// ──────────────────────────────────────────────────
// Key-delivery lifecycle hooks
// ──────────────────────────────────────────────────

// KeyRequested is called when a key-delivery request is enqueued.
// Dropped non-mandatory duplicates do not fire this hook.
type KeyRequested interface {
	OnKeyRequested(ctx context.Context, mandatory bool) error
}

// KeyDelivered is called when a key delivery completes with OK.
type KeyDelivered interface {
	OnKeyDelivered(ctx context.Context, elapsed time.Duration) error
}

// KeyDeliveryFailed is called when a key delivery completes with a
// failure, including the teardown flush.
type KeyDeliveryFailed interface {
	OnKeyDeliveryFailed(ctx context.Context, status uplink.Status) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful component shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
