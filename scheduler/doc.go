// Package scheduler admits and runs jobs within a global concurrency
// bound, preserving FIFO fairness and notifying observers of every
// lifecycle transition.
//
// The scheduler owns a serialized sequence; its queue, semaphore and
// observer registry are mutated only there. Admitted job delegates run
// in parallel on worker goroutines, one per occupied semaphore slot,
// and completions are marshalled back onto the sequence by posting.
// Enqueueing never blocks and admission failures always resolve
// asynchronously through the job's own cancellation path.
package scheduler
