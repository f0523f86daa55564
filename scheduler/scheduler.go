package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/ext"
	"github.com/uplink-foundation/uplink/internal/sequence"
	"github.com/uplink-foundation/uplink/job"
)

// Scheduler owns a FIFO queue of pending jobs, a Semaphore, and an
// observer registry. All three are mutated only on the scheduler's
// sequence.
type Scheduler struct {
	logger    *slog.Logger
	observers *ext.Registry
	limiter   *rate.Limiter

	seq   *sequence.Sequence
	sem   *Semaphore
	queue []*job.Job

	// inflight counts running workers; sequence-confined. drained is
	// set by Close's teardown task while workers remain and closed by
	// the completion callback that brings the count to zero.
	inflight int
	drained  chan struct{}

	closed atomic.Bool

	// initial ceiling, consumed by New.
	limit TaskLimit
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithTaskLimit sets the initial concurrency ceiling.
func WithTaskLimit(limit TaskLimit) Option {
	return func(s *Scheduler) { s.limit = limit }
}

// WithObservers sets the observer registry notified of lifecycle
// transitions. Without it the scheduler creates an empty registry.
func WithObservers(r *ext.Registry) Option {
	return func(s *Scheduler) { s.observers = r }
}

// WithEnqueueLimiter sets a token-bucket limiter applied at enqueue
// time. Throttled jobs are rejected with RESOURCE_EXHAUSTED through
// their cancellation path. Without it enqueueing is never throttled.
func WithEnqueueLimiter(l *rate.Limiter) Option {
	return func(s *Scheduler) { s.limiter = l }
}

// New creates a Scheduler and starts its sequence. The ceiling starts
// at NORMAL unless overridden.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		limit:  TaskLimitNormal,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.observers == nil {
		s.observers = ext.NewRegistry(s.logger)
	}
	s.seq = sequence.New()
	s.sem = NewSemaphore(s.limit, s.Post)
	return s
}

// Post posts a continuation onto the scheduler's sequence. It is the
// job.PostFunc jobs scheduled here must be created with.
func (s *Scheduler) Post(fn func()) bool { return s.seq.Post(fn) }

// NewJob creates a job whose completion callback is bound to this
// scheduler's sequence.
func (s *Scheduler) NewJob(delegate job.Delegate) (*job.Job, error) {
	return job.New(delegate, s.Post)
}

// AddObserver registers an observer for lifecycle events. The
// registration itself is posted onto the sequence, so it is safe from
// any goroutine and before any job has been enqueued.
func (s *Scheduler) AddObserver(o ext.Observer) {
	s.Post(func() { s.observers.Register(o) })
}

// UpdateTaskLimit changes the concurrency ceiling, typically in
// response to an external resource-pressure signal. Newly freed
// capacity is handed out on the next dispatch pass.
func (s *Scheduler) UpdateTaskLimit(limit TaskLimit) {
	s.Post(func() {
		s.logger.Info("task limit updated",
			slog.String("from", s.sem.Limit().String()),
			slog.String("to", limit.String()),
		)
		s.sem.UpdateTaskLimit(limit)
	})
}

// EnqueueJob submits a job for execution. It never blocks; admission
// resolves asynchronously. A rejection is never surfaced to the caller
// here, only through the job's cancellation path and the REJECTED_JOB
// observer event.
func (s *Scheduler) EnqueueJob(j *job.Job) {
	if s.closed.Load() {
		j.Cancel(uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonShuttingDown,
			"scheduler closed"))
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		st := uplink.NewStatus(uplink.CodeResourceExhausted, uplink.ReasonEnqueueThrottled,
			"enqueue rate limit exceeded")
		if !s.Post(func() { s.reject(j, st) }) {
			j.Cancel(st)
		}
		return
	}

	if !s.Post(func() { s.admit(j) }) {
		// Sequence gone: the scheduler closed between the caller's
		// check and now. Resolve the job inline.
		j.Cancel(uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonShuttingDown,
			"scheduler closed"))
	}
}

// Close cancels still-queued jobs, waits for in-flight jobs to finish
// (they are not preempted), and stops the sequence. Observers receive
// a final Shutdown event. Safe to call more than once.
func (s *Scheduler) Close() {
	if s.closed.Swap(true) {
		return
	}

	// All in-flight accounting happens on the sequence, so the
	// teardown task can decide whether workers remain; waiting on the
	// channel it arranges cannot miss a later increment because no
	// task running after teardown starts a job.
	idle := make(chan struct{})
	s.Post(func() {
		st := uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonShuttingDown,
			"scheduler closing")
		for _, queued := range s.queue {
			if res := queued.Cancel(st); !res.IsOK() && res.Reason != st.Reason {
				s.logger.Warn("queued job did not cancel cleanly",
					slog.Any("job_id", queued.ID()),
					slog.String("status", res.String()),
				)
			}
		}
		s.queue = nil
		s.observers.EmitShutdown(context.Background())

		if s.inflight == 0 {
			close(idle)
		} else {
			s.drained = idle
		}
	})

	<-idle
	s.seq.Close()
}

// ──────────────────────────────────────────────────
// Sequence-confined internals
// ──────────────────────────────────────────────────

// admit runs on the sequence. With the ceiling off the job is
// cancelled immediately and only REJECTED_JOB fires; otherwise the job
// joins the queue, ACCEPTED_JOB fires, and dispatch runs.
func (s *Scheduler) admit(j *job.Job) {
	if s.closed.Load() {
		s.reject(j, uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonShuttingDown,
			"scheduler closing"))
		return
	}

	if s.sem.Limit() == TaskLimitOff {
		s.reject(j, uplink.NewStatus(uplink.CodeResourceExhausted, uplink.ReasonSchedulerOff,
			"job ceiling is off"))
		return
	}

	s.queue = append(s.queue, j)
	s.observers.EmitJobAccepted(context.Background(), j)
	s.dispatch()
}

// reject runs on the sequence.
func (s *Scheduler) reject(j *job.Job, st uplink.Status) {
	if res := j.Cancel(st); !res.IsOK() && res.Reason != st.Reason {
		s.logger.Warn("rejected job did not cancel cleanly",
			slog.Any("job_id", j.ID()),
			slog.String("status", res.String()),
		)
	}
	s.observers.EmitJobRejected(context.Background(), j, st)
}

// dispatch runs on the sequence: start queued jobs until the queue
// drains or a slot acquisition fails, in which case BLOCKED_JOB fires
// for the job at the front and the rest wait for a future release.
func (s *Scheduler) dispatch() {
	for len(s.queue) > 0 {
		blocker, st := s.sem.Acquire()
		if !st.IsOK() {
			s.observers.EmitJobBlocked(context.Background(), s.queue[0])
			return
		}
		s.startJob(s.popFront(), blocker)
	}
}

func (s *Scheduler) popFront() *job.Job {
	j := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return j
}

// startJob runs on the sequence. The job body executes on its own
// worker goroutine under the acquired blocker; the completion callback
// is bound back here.
func (s *Scheduler) startJob(j *job.Job, blocker *Blocker) {
	s.observers.EmitJobStarted(context.Background(), j)
	s.inflight++
	started := time.Now()

	go j.Start(func(st uplink.Status) {
		s.onJobDone(j, blocker, st, time.Since(started))
	})
}

// onJobDone runs on the sequence. It reports the completion, then
// either hands the freed slot directly to the next queued job or
// releases the blocker.
func (s *Scheduler) onJobDone(j *job.Job, blocker *Blocker, st uplink.Status, elapsed time.Duration) {
	s.inflight--

	if st.IsOK() {
		s.observers.EmitJobCompleted(context.Background(), j, elapsed)
	} else {
		s.observers.EmitJobFailed(context.Background(), j, st)
	}

	// Direct handoff: skip the full dispatch pass when the slot can be
	// reassigned as-is. Never hand off while closing; the teardown
	// flush owns the remaining queue.
	if len(s.queue) > 0 && s.sem.WithinTaskLimit() && !s.closed.Load() {
		s.startJob(s.popFront(), blocker)
		return
	}
	blocker.Release()

	// drained is only set once Close's teardown has run, after which
	// no handoff re-increments the count.
	if s.inflight == 0 && s.drained != nil {
		close(s.drained)
		s.drained = nil
	}
}
