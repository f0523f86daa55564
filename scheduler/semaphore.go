package scheduler

import (
	"sync/atomic"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/job"
)

// TaskLimit is the operating ceiling of a Semaphore: how many jobs may
// hold execution slots at once.
type TaskLimit int

const (
	// TaskLimitOff admits nothing. Every enqueue is rejected.
	TaskLimitOff TaskLimit = 0
	// TaskLimitReduced is the degraded ceiling used under resource
	// pressure.
	TaskLimitReduced TaskLimit = 2
	// TaskLimitNormal is the default ceiling.
	TaskLimitNormal TaskLimit = 5
)

// String returns the canonical name of the limit.
func (l TaskLimit) String() string {
	switch l {
	case TaskLimitOff:
		return "OFF"
	case TaskLimitReduced:
		return "REDUCED"
	case TaskLimitNormal:
		return "NORMAL"
	default:
		return "CUSTOM"
	}
}

// Semaphore enforces the configured ceiling by issuing one Blocker per
// occupied execution slot. All methods except Blocker.Release run on
// the scheduler's sequence; counters are plain fields on purpose.
type Semaphore struct {
	limit   TaskLimit
	running int
	post    job.PostFunc
}

// NewSemaphore creates a semaphore with the given ceiling. The post
// function must target the sequence the semaphore is confined to;
// blocker releases are marshalled through it.
func NewSemaphore(limit TaskLimit, post job.PostFunc) *Semaphore {
	return &Semaphore{limit: limit, post: post}
}

// Limit returns the current ceiling.
func (s *Semaphore) Limit() TaskLimit { return s.limit }

// Running returns the number of occupied slots.
func (s *Semaphore) Running() int { return s.running }

// Acquire issues a Blocker for one execution slot. It fails with
// RESOURCE_EXHAUSTED when the ceiling is off or every slot is taken.
func (s *Semaphore) Acquire() (*Blocker, uplink.Status) {
	if s.limit == TaskLimitOff {
		return nil, uplink.NewStatus(uplink.CodeResourceExhausted, uplink.ReasonSchedulerOff,
			"job ceiling is off")
	}
	if s.running >= int(s.limit) {
		return nil, uplink.NewStatusf(uplink.CodeResourceExhausted, uplink.ReasonSemaphoreSaturated,
			"all %d slots occupied", s.limit)
	}
	s.running++
	return &Blocker{sem: s}, uplink.OK()
}

// WithinTaskLimit reports whether a slot just freed by a completing
// job may be handed directly to the next queued job. The completing
// job still holds its slot when this runs, so the held slot counts.
func (s *Semaphore) WithinTaskLimit() bool {
	return s.limit != TaskLimitOff && s.running <= int(s.limit)
}

// UpdateTaskLimit changes the ceiling. Lowering it never preempts
// running jobs; newly freed capacity is handed out on the next
// dispatch pass.
func (s *Semaphore) UpdateTaskLimit(limit TaskLimit) {
	if limit < TaskLimitOff {
		limit = TaskLimitOff
	}
	s.limit = limit
}

// release returns one slot. Runs on the sequence only.
func (s *Semaphore) release() {
	s.running--
	if s.running < 0 {
		panic("scheduler: semaphore released more blockers than it issued")
	}
}

// Blocker represents one occupied execution slot. It is frequently
// held on a worker goroutine, so its release always posts back onto
// the scheduler's sequence regardless of the releasing goroutine.
type Blocker struct {
	sem      *Semaphore
	released atomic.Bool
}

// Release frees the slot. Releasing twice is inert.
func (b *Blocker) Release() {
	if b.released.Swap(true) {
		return
	}
	b.sem.post(b.sem.release)
}
