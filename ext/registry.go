package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/job"
)

// Named entry types pair a hook implementation with the observer name
// captured at registration time. This avoids type-asserting back to
// Observer inside the emit methods.
type jobAcceptedEntry struct {
	name string
	hook JobAccepted
}

type jobRejectedEntry struct {
	name string
	hook JobRejected
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobBlockedEntry struct {
	name string
	hook JobBlocked
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type keyRequestedEntry struct {
	name string
	hook KeyRequested
}

type keyDeliveredEntry struct {
	name string
	hook KeyDelivered
}

type keyDeliveryFailedEntry struct {
	name string
	hook KeyDeliveryFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered observers and dispatches lifecycle events
// to them. It type-caches observers at registration time so emit calls
// iterate only over observers that implement the relevant hook.
//
// Registration is not synchronized; the owning component registers
// observers on its own sequence.
type Registry struct {
	observers []Observer
	logger    *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobAccepted       []jobAcceptedEntry
	jobRejected       []jobRejectedEntry
	jobStarted        []jobStartedEntry
	jobBlocked        []jobBlockedEntry
	jobCompleted      []jobCompletedEntry
	jobFailed         []jobFailedEntry
	keyRequested      []keyRequestedEntry
	keyDelivered      []keyDeliveredEntry
	keyDeliveryFailed []keyDeliveryFailedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an observer registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an observer and type-asserts it into all applicable
// hook caches. Observers are notified in registration order.
func (r *Registry) Register(o Observer) {
	r.observers = append(r.observers, o)
	name := o.Name()

	if h, ok := o.(JobAccepted); ok {
		r.jobAccepted = append(r.jobAccepted, jobAcceptedEntry{name, h})
	}
	if h, ok := o.(JobRejected); ok {
		r.jobRejected = append(r.jobRejected, jobRejectedEntry{name, h})
	}
	if h, ok := o.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := o.(JobBlocked); ok {
		r.jobBlocked = append(r.jobBlocked, jobBlockedEntry{name, h})
	}
	if h, ok := o.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := o.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := o.(KeyRequested); ok {
		r.keyRequested = append(r.keyRequested, keyRequestedEntry{name, h})
	}
	if h, ok := o.(KeyDelivered); ok {
		r.keyDelivered = append(r.keyDelivered, keyDeliveredEntry{name, h})
	}
	if h, ok := o.(KeyDeliveryFailed); ok {
		r.keyDeliveryFailed = append(r.keyDeliveryFailed, keyDeliveryFailedEntry{name, h})
	}
	if h, ok := o.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Observers returns all registered observers.
func (r *Registry) Observers() []Observer { return r.observers }

// ──────────────────────────────────────────────────
// Scheduler event emitters
// ──────────────────────────────────────────────────

// EmitJobAccepted notifies all observers that implement JobAccepted.
func (r *Registry) EmitJobAccepted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobAccepted {
		if err := e.hook.OnJobAccepted(ctx, j); err != nil {
			r.logHookError("OnJobAccepted", e.name, err)
		}
	}
}

// EmitJobRejected notifies all observers that implement JobRejected.
func (r *Registry) EmitJobRejected(ctx context.Context, j *job.Job, status uplink.Status) {
	for _, e := range r.jobRejected {
		if err := e.hook.OnJobRejected(ctx, j, status); err != nil {
			r.logHookError("OnJobRejected", e.name, err)
		}
	}
}

// EmitJobStarted notifies all observers that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobBlocked notifies all observers that implement JobBlocked.
func (r *Registry) EmitJobBlocked(ctx context.Context, j *job.Job) {
	for _, e := range r.jobBlocked {
		if err := e.hook.OnJobBlocked(ctx, j); err != nil {
			r.logHookError("OnJobBlocked", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all observers that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all observers that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, status uplink.Status) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, status); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Key-delivery event emitters
// ──────────────────────────────────────────────────

// EmitKeyRequested notifies all observers that implement KeyRequested.
func (r *Registry) EmitKeyRequested(ctx context.Context, mandatory bool) {
	for _, e := range r.keyRequested {
		if err := e.hook.OnKeyRequested(ctx, mandatory); err != nil {
			r.logHookError("OnKeyRequested", e.name, err)
		}
	}
}

// EmitKeyDelivered notifies all observers that implement KeyDelivered.
func (r *Registry) EmitKeyDelivered(ctx context.Context, elapsed time.Duration) {
	for _, e := range r.keyDelivered {
		if err := e.hook.OnKeyDelivered(ctx, elapsed); err != nil {
			r.logHookError("OnKeyDelivered", e.name, err)
		}
	}
}

// EmitKeyDeliveryFailed notifies all observers that implement KeyDeliveryFailed.
func (r *Registry) EmitKeyDeliveryFailed(ctx context.Context, status uplink.Status) {
	for _, e := range r.keyDeliveryFailed {
		if err := e.hook.OnKeyDeliveryFailed(ctx, status); err != nil {
			r.logHookError("OnKeyDeliveryFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all observers that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the
// scheduling pipeline.
func (r *Registry) logHookError(hook, obsName string, err error) {
	r.logger.Warn("observer hook error",
		slog.String("hook", hook),
		slog.String("observer", obsName),
		slog.String("error", err.Error()),
	)
}
