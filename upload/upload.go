// Package upload provides the delegate that scheduler jobs use to run
// an upload session. A Delegate acquires an uploader through the
// daemon's AsyncStartUploader collaborator, hands it to a
// caller-supplied fill function, and reports the session outcome.
//
// Acquisition failures are retried a bounded number of times with
// backoff. The upload itself is never retried on the caller's behalf;
// a failed session is reported as the job's outcome and the caller
// decides whether to enqueue again.
package upload

import (
	"context"
	"log/slog"
	"time"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/backoff"
	"github.com/uplink-foundation/uplink/id"
	"github.com/uplink-foundation/uplink/job"
	"github.com/uplink-foundation/uplink/middleware"
)

// DefaultAcquireAttempts bounds uploader acquisition tries per run.
const DefaultAcquireAttempts = 3

// FillFunc feeds records into an acquired uploader and returns the
// session outcome. It runs on the worker goroutine and may block.
type FillFunc func(ctx context.Context, up uplink.Uploader) uplink.Status

// Option configures a Delegate.
type Option func(*Delegate)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Delegate) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRetry replaces the acquisition retry policy. attempts is the
// total number of acquisition tries; values below one are clamped to
// one.
func WithRetry(strategy backoff.Strategy, attempts int) Option {
	return func(d *Delegate) {
		if strategy != nil {
			d.retry = strategy
		}
		if attempts < 1 {
			attempts = 1
		}
		d.attempts = attempts
	}
}

// WithMiddleware wraps the delegate's work in the given middleware
// chain, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Delegate) {
		if len(mws) > 0 {
			d.chain = middleware.Chain(mws...)
		}
	}
}

// Delegate implements job.Delegate for upload sessions.
type Delegate struct {
	logger   *slog.Logger
	info     middleware.Info
	reason   uplink.UploadReason
	start    uplink.AsyncStartUploader
	fill     FillFunc
	retry    backoff.Strategy
	attempts int
	chain    middleware.Middleware
}

var _ job.Delegate = (*Delegate)(nil)

// New creates an upload delegate named for logging and observability.
// start and fill are required.
func New(name string, reason uplink.UploadReason, start uplink.AsyncStartUploader, fill FillFunc, opts ...Option) (*Delegate, error) {
	if start == nil {
		return nil, uplink.ErrNoUploaderStarter
	}
	if fill == nil {
		return nil, uplink.ErrNoFillFunc
	}
	d := &Delegate{
		logger:   slog.Default(),
		info:     middleware.Info{JobID: id.NewJobID(), Name: name},
		reason:   reason,
		start:    start,
		fill:     fill,
		retry:    backoff.DefaultStrategy(),
		attempts: DefaultAcquireAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Complete acquires an uploader, runs the fill function, and closes
// the session with its outcome.
func (d *Delegate) Complete() uplink.Status {
	if d.chain != nil {
		return d.chain(context.Background(), d.info, d.run)
	}
	return d.run(context.Background())
}

// Cancel disposes of a session that will never run.
func (d *Delegate) Cancel(reason uplink.Status) uplink.Status {
	d.logger.Debug("upload cancelled before start",
		slog.String("name", d.info.Name),
		slog.String("reason", reason.String()),
	)
	return reason
}

func (d *Delegate) run(ctx context.Context) uplink.Status {
	up, st := d.acquire()
	if !st.IsOK() {
		return st
	}

	outcome := d.fill(ctx, up)
	up.Completed(outcome)
	return outcome
}

// acquire asks the collaborator for an uploader, retrying with
// backoff.
func (d *Delegate) acquire() (uplink.Uploader, uplink.Status) {
	var last uplink.Status
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(d.retry.Delay(attempt - 1))
		}

		type result struct {
			up uplink.Uploader
			st uplink.Status
		}
		ch := make(chan result, 1)
		d.start(d.reason, nil, func(up uplink.Uploader, st uplink.Status) {
			ch <- result{up: up, st: st}
		})
		res := <-ch

		if res.st.IsOK() && res.up != nil {
			return res.up, uplink.OK()
		}
		last = res.st
		if last.IsOK() {
			last = uplink.NewStatus(uplink.CodeInternal, uplink.ReasonUploaderUnavailable,
				"starter reported OK without an uploader")
		}
		d.logger.Warn("uploader acquisition failed",
			slog.String("name", d.info.Name),
			slog.Int("attempt", attempt),
			slog.String("status", last.String()),
		)
	}

	return nil, uplink.NewStatusf(uplink.CodeUnavailable, uplink.ReasonUploaderUnavailable,
		"no uploader after %d attempts: %s", d.attempts, last.String())
}
