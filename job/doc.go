// Package job defines the schedulable unit of work and its lifecycle
// state machine.
//
// A Job wraps a caller-supplied Delegate and owns exactly one
// traversal of
//
//	NOT_RUNNING → RUNNING → {COMPLETED, CANCELLED}
//	NOT_RUNNING → CANCELLED
//
// No other edges exist. Start is the single legitimately cross-thread
// entry point; it and Cancel arbitrate through one atomic state word,
// everything else is a plain field.
package job
