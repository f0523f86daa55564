// Package middleware provides composable middleware for delegate
// execution.
//
// A [Middleware] wraps the work a delegate performs. Middleware are
// composed with [Chain] and attached to a delegate with [Apply]; they
// run on the worker goroutine that executes the delegate. They are
// applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → work
//	d = middleware.Apply(d, info, middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] records start, outcome, and duration of each execution
//   - [Recover] converts delegate panics into INTERNAL statuses
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records per-execution duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, info middleware.Info, next middleware.Handler) uplink.Status {
//	        // pre-processing
//	        st := next(ctx)
//	        // post-processing
//	        return st
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
