// Package keydelivery coalesces concurrent encryption-key refresh
// requests into a single uploader start and fans the outcome out to
// every waiting caller.
//
// A mandatory request always joins the pending list; a non-mandatory
// request joins only when the list is empty, otherwise its callback is
// discarded. That de-duplication is the point of the component, not an
// error. The only built-in retry is the optional periodic update
// timer; a failed delivery is reported to every coalesced caller and
// then forgotten.
package keydelivery

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/ext"
	"github.com/uplink-foundation/uplink/internal/sequence"
)

// KeyDelivery single-flights key refresh requests. All mutable state
// is confined to the delivery sequence.
type KeyDelivery struct {
	logger     *slog.Logger
	observers  *ext.Registry
	encryption uplink.EncryptionModule
	start      uplink.AsyncStartUploader

	seq *sequence.Sequence

	// Sequence-confined fields.
	pending        []func(uplink.Status)
	requestStarted time.Time
	timerArmed     bool
	timerStop      chan struct{}

	timerWG sync.WaitGroup
	closed  atomic.Bool
}

// Option configures a KeyDelivery.
type Option func(*KeyDelivery)

// WithLogger sets the component's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(kd *KeyDelivery) { kd.logger = logger }
}

// WithObservers sets the observer registry notified of key-delivery
// lifecycle events.
func WithObservers(r *ext.Registry) Option {
	return func(kd *KeyDelivery) { kd.observers = r }
}

// New creates a KeyDelivery. Both the encryption-state view and the
// uploader start callback are required.
func New(encryption uplink.EncryptionModule, start uplink.AsyncStartUploader, opts ...Option) (*KeyDelivery, error) {
	if encryption == nil {
		return nil, uplink.ErrNoEncryptionModule
	}
	if start == nil {
		return nil, uplink.ErrNoUploaderStarter
	}

	kd := &KeyDelivery{
		logger:     slog.Default(),
		encryption: encryption,
		start:      start,
	}
	for _, opt := range opts {
		opt(kd)
	}
	if kd.observers == nil {
		kd.observers = ext.NewRegistry(kd.logger)
	}
	kd.seq = sequence.New()
	return kd, nil
}

// Request asks for a key delivery. It never blocks; cb resolves
// asynchronously with the delivery outcome and is invoked exactly
// once, except for the deliberate drop of a non-mandatory request
// while one is already pending, in which case cb never runs.
func (kd *KeyDelivery) Request(mandatory bool, cb func(uplink.Status)) {
	if cb == nil {
		cb = func(uplink.Status) {}
	}
	if !kd.seq.Post(func() { kd.request(mandatory, cb) }) {
		cb(kd.shutdownStatus())
	}
}

// OnCompletion reports the outcome of an in-flight key delivery. The
// surrounding system calls it once the key (or its refusal) arrives
// through the upload response path. Every coalesced callback resolves
// with the same status.
func (kd *KeyDelivery) OnCompletion(status uplink.Status) {
	kd.seq.Post(func() { kd.flush(status) })
}

// StartPeriodicKeyUpdate arms the periodic refresh timer. Idempotent:
// a second call has no effect while a timer is armed, regardless of
// the requested period.
func (kd *KeyDelivery) StartPeriodicKeyUpdate(period time.Duration) {
	kd.seq.Post(func() {
		if kd.closed.Load() {
			return
		}
		if kd.timerArmed {
			kd.logger.Debug("periodic key update already armed")
			return
		}
		kd.timerArmed = true
		kd.timerStop = make(chan struct{})
		kd.timerWG.Add(1)
		go kd.periodicLoop(period, kd.timerStop)

		kd.logger.Info("periodic key update armed",
			slog.Duration("period", period))
	})
}

// Close flushes every pending callback with UNAVAILABLE, stops the
// timer and the sequence. Safe to call more than once.
func (kd *KeyDelivery) Close() {
	if kd.closed.Swap(true) {
		return
	}

	kd.seq.Post(func() {
		if kd.timerArmed {
			close(kd.timerStop)
			kd.timerArmed = false
		}
		kd.flush(kd.shutdownStatus())
		kd.observers.EmitShutdown(context.Background())
	})

	// The sequence must close before the Wait. Once it returns, every
	// posted arm task has either bailed on the closed flag or finished
	// its Add, so the counter can only drain.
	kd.seq.Close()
	kd.timerWG.Wait()
}

func (kd *KeyDelivery) shutdownStatus() uplink.Status {
	return uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonShuttingDown,
		"key delivery closing")
}

// ──────────────────────────────────────────────────
// Sequence-confined internals
// ──────────────────────────────────────────────────

// request runs on the sequence. Insert iff mandatory or the pending
// list is empty; the insertion that makes the list non-empty triggers
// the fetch.
func (kd *KeyDelivery) request(mandatory bool, cb func(uplink.Status)) {
	if kd.closed.Load() {
		cb(kd.shutdownStatus())
		return
	}

	trigger := len(kd.pending) == 0
	if !mandatory && !trigger {
		kd.logger.Debug("dropping duplicate key request")
		return
	}

	kd.pending = append(kd.pending, cb)
	kd.observers.EmitKeyRequested(context.Background(), mandatory)

	if trigger {
		kd.requestStarted = time.Now()
		kd.fetch()
	}
}

// fetch runs on the sequence: start a dedicated key-delivery uploader.
// No records accompany it, so a successfully started session is closed
// immediately; the key outcome arrives later through OnCompletion.
func (kd *KeyDelivery) fetch() {
	kd.logger.Info("requesting encryption key")

	kd.start(uplink.UploadKeyDelivery, nil, func(up uplink.Uploader, st uplink.Status) {
		if !st.IsOK() {
			kd.OnCompletion(st)
			return
		}
		up.Completed(uplink.OK())
	})
}

// flush runs on the sequence: resolve and clear every pending
// callback with the same status. A completion with nothing pending is
// ignored.
func (kd *KeyDelivery) flush(status uplink.Status) {
	if len(kd.pending) == 0 {
		return
	}
	cbs := kd.pending
	kd.pending = nil

	elapsed := time.Since(kd.requestStarted)
	if status.IsOK() {
		kd.logger.Info("encryption key delivered",
			slog.Duration("elapsed", elapsed),
			slog.Int("waiters", len(cbs)))
		kd.observers.EmitKeyDelivered(context.Background(), elapsed)
	} else {
		kd.logger.Warn("encryption key delivery failed",
			slog.String("status", status.String()),
			slog.Int("waiters", len(cbs)))
		kd.observers.EmitKeyDeliveryFailed(context.Background(), status)
	}

	for _, cb := range cbs {
		cb(status)
	}
}

// requestIfNeeded runs on the sequence for each periodic tick. It
// skips the request entirely while a valid, non-expiring key is
// present.
func (kd *KeyDelivery) requestIfNeeded() {
	if kd.encryption.HasEncryptionKey() && !kd.encryption.NeedsEncryptionKey() {
		return
	}
	kd.request(false, func(st uplink.Status) {
		if !st.IsOK() {
			kd.logger.Warn("periodic key update failed",
				slog.String("status", st.String()))
		}
	})
}

func (kd *KeyDelivery) periodicLoop(period time.Duration, stop <-chan struct{}) {
	defer kd.timerWG.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			kd.seq.Post(kd.requestIfNeeded)
		}
	}
}
