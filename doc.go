// Package uplink provides the scheduling core of an encrypted
// record-upload daemon: a bounded-concurrency job scheduler with FIFO
// admission and lifecycle observers, plus a single-flight key-delivery
// coalescer with periodic refresh.
//
// Uplink is designed as a library, not a service. The surrounding
// system supplies the two external capabilities the core depends on
// (an uploader-acquisition callback and an encryption-state view) and
// the core supplies admission control, backpressure, and a verifiable
// job lifecycle.
//
// # Quick Start
//
//	s := scheduler.New(
//	    scheduler.WithLogger(logger),
//	    scheduler.WithTaskLimit(scheduler.TaskLimitNormal),
//	)
//	defer s.Close()
//
//	j, err := s.NewJob(delegate)
//	if err != nil {
//	    return err
//	}
//	s.EnqueueJob(j)
//
// # Architecture
//
// Each stateful component owns a serialized execution context: a
// single goroutine that applies posted continuations one at a time.
// Job bodies run in parallel on worker goroutines bounded by the
// scheduler's semaphore; results are marshalled back onto the owning
// context by posting. No component shares mutable state across
// goroutines through locks.
//
// Results cross component boundaries as Status values, never as
// panics. Every failure carries a stable machine-readable Reason tag
// alongside its code.
package uplink
