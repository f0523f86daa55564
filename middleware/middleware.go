package middleware

import (
	"context"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/id"
	"github.com/uplink-foundation/uplink/job"
)

// Info identifies the work a middleware chain is wrapping.
type Info struct {
	// JobID is the identity of the job driving the delegate.
	JobID id.ID

	// Name describes the work, e.g. "periodic upload".
	Name string
}

// Handler is the terminal function that performs the delegate's work.
type Handler func(ctx context.Context) uplink.Status

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the identity of the work, and the next handler.
// Middleware MUST call next to continue the chain (unless
// short-circuiting).
type Middleware func(ctx context.Context, info Info, next Handler) uplink.Status

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover) executes as:
//
//	logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, info Info, next Handler) uplink.Status {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) uplink.Status {
				return mw(ctx, info, prev)
			}
		}
		return h(ctx)
	}
}

// Apply returns a delegate whose Complete runs inside the given
// middleware chain. Cancel is forwarded to the wrapped delegate
// untouched. With no middleware the delegate is returned as is.
func Apply(d job.Delegate, info Info, mws ...Middleware) job.Delegate {
	if len(mws) == 0 {
		return d
	}
	return &wrappedDelegate{
		inner: d,
		info:  info,
		chain: Chain(mws...),
	}
}

type wrappedDelegate struct {
	inner job.Delegate
	info  Info
	chain Middleware
}

func (w *wrappedDelegate) Complete() uplink.Status {
	return w.chain(context.Background(), w.info, func(context.Context) uplink.Status {
		return w.inner.Complete()
	})
}

func (w *wrappedDelegate) Cancel(reason uplink.Status) uplink.Status {
	return w.inner.Cancel(reason)
}
