// Package sequence implements a serialized execution context: a
// single goroutine that applies posted continuations one at a time in
// post order. Components confine their mutable state to one Sequence
// instead of guarding it with locks; worker goroutines reach that
// state only by posting.
package sequence

import "sync"

// Sequence is a single-consumer task runner. Post never blocks the
// caller; tasks run strictly in post order on one dedicated goroutine.
type Sequence struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool

	done chan struct{}
}

// New creates a Sequence and starts its runner goroutine.
func New() *Sequence {
	s := &Sequence{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Post appends fn to the sequence. It returns false if the sequence
// has been closed, in which case fn will never run.
func (s *Sequence) Post(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.tasks = append(s.tasks, fn)
	s.cond.Signal()
	return true
}

// Close stops accepting new tasks, runs everything already posted,
// and waits for the runner to exit. Safe to call more than once.
// Must not be called from the sequence's own goroutine.
func (s *Sequence) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cond.Signal()
	}
	s.mu.Unlock()

	<-s.done
}

func (s *Sequence) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.tasks) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.tasks) == 0 {
			// Closed and drained.
			s.mu.Unlock()
			return
		}
		fn := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		fn()
	}
}
