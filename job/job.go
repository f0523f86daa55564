package job

import (
	"sync/atomic"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/id"
)

// State represents the lifecycle state of a job.
type State int32

const (
	// StateNotRunning means the job has been created but not started.
	StateNotRunning State = iota
	// StateRunning means a worker is currently executing the delegate.
	StateRunning
	// StateCompleted means the delegate finished with an OK status.
	StateCompleted
	// StateCancelled means the job was cancelled before starting, or
	// its delegate finished with a failure.
	StateCancelled
)

// String returns the canonical name of the state.
func (s State) String() string {
	switch s {
	case StateNotRunning:
		return "NOT_RUNNING"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "INVALID"
	}
}

// Delegate supplies the actual work a Job performs. Complete runs on a
// worker goroutine and may block; Cancel must not.
type Delegate interface {
	// Complete performs the work and returns its outcome.
	Complete() uplink.Status

	// Cancel disposes of the delegate's resources for a job that will
	// never run, forwarding the cancellation reason to whoever is
	// waiting on the job. It returns the disposal outcome.
	Cancel(reason uplink.Status) uplink.Status
}

// PostFunc posts a continuation onto the sequence that owns the job's
// completion callback. It reports whether the continuation was
// accepted.
type PostFunc func(fn func()) bool

// Job is a unit of schedulable work. The scheduler exclusively owns a
// queued Job; once admitted, exactly one worker execution owns it
// until the completion callback returns ownership to the scheduler's
// sequence for disposal.
type Job struct {
	jobID    id.ID
	delegate Delegate
	post     PostFunc

	// state is the only cross-goroutine field. Start and Cancel
	// arbitrate the NOT_RUNNING exit through CAS; the terminal store
	// happens while the running worker still solely owns the job.
	state atomic.Int32
}

// New creates a Job around the delegate. The post function identifies
// the sequence the completion callback must run on; both arguments are
// required.
func New(delegate Delegate, post PostFunc) (*Job, error) {
	if delegate == nil {
		return nil, uplink.ErrNoDelegate
	}
	if post == nil {
		return nil, uplink.ErrClosed
	}
	return &Job{jobID: id.NewJobID(), delegate: delegate, post: post}, nil
}

// ID returns the job's unique identifier.
func (j *Job) ID() id.ID { return j.jobID }

// State returns the job's current lifecycle state.
func (j *Job) State() State { return State(j.state.Load()) }

// Start transitions the job to RUNNING, executes the delegate on the
// calling goroutine, and resolves done on the job's owning sequence
// with the delegate's result. If the job already left NOT_RUNNING,
// done resolves with UNAVAILABLE and nothing else happens.
//
// done is invoked exactly once.
func (j *Job) Start(done func(uplink.Status)) {
	if done == nil {
		done = func(uplink.Status) {}
	}

	if !j.state.CompareAndSwap(int32(StateNotRunning), int32(StateRunning)) {
		j.resolve(done, uplink.NewStatusf(uplink.CodeUnavailable, j.blockedReason(),
			"job %s cannot start from state %s", j.jobID, j.State()))
		return
	}

	result := j.delegate.Complete()
	if result.IsOK() {
		j.state.Store(int32(StateCompleted))
	} else {
		j.state.Store(int32(StateCancelled))
	}
	j.resolve(done, result)
}

// Cancel aborts a job that has not started. The reason must be a
// failure status; cancelling with OK fails with INVALID_ARGUMENT, and
// cancelling once the job left NOT_RUNNING fails with UNAVAILABLE. On
// success the delegate's Cancel result is returned.
func (j *Job) Cancel(reason uplink.Status) uplink.Status {
	if reason.IsOK() {
		return uplink.NewStatus(uplink.CodeInvalidArgument, uplink.ReasonCancelWithoutCause,
			"cancellation must carry a failure status")
	}

	if !j.state.CompareAndSwap(int32(StateNotRunning), int32(StateCancelled)) {
		return uplink.NewStatusf(uplink.CodeUnavailable, j.blockedReason(),
			"job %s cannot be cancelled from state %s", j.jobID, j.State())
	}

	return j.delegate.Cancel(reason)
}

// resolve posts done onto the owning sequence. If the sequence is gone
// (component teardown racing a worker), done is delivered inline so
// the exactly-once guarantee holds.
func (j *Job) resolve(done func(uplink.Status), status uplink.Status) {
	if !j.post(func() { done(status) }) {
		done(status)
	}
}

// blockedReason maps the current state to the reason tag reported when
// an operation finds the job past NOT_RUNNING.
func (j *Job) blockedReason() uplink.Reason {
	switch j.State() {
	case StateRunning:
		return uplink.ReasonJobAlreadyRunning
	case StateCancelled:
		return uplink.ReasonJobAlreadyCancelled
	default:
		return uplink.ReasonJobAlreadyFinished
	}
}
