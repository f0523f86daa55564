package middleware_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/id"
	"github.com/uplink-foundation/uplink/middleware"
)

func testInfo() middleware.Info {
	return middleware.Info{JobID: id.NewJobID(), Name: "flush-upload"}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ middleware.Info, next middleware.Handler) uplink.Status {
		order = append(order, "mw1-before")
		st := next(ctx)
		order = append(order, "mw1-after")
		return st
	}

	mw2 := func(ctx context.Context, _ middleware.Info, next middleware.Handler) uplink.Status {
		order = append(order, "mw2-before")
		st := next(ctx)
		order = append(order, "mw2-after")
		return st
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) uplink.Status {
		order = append(order, "handler")
		return uplink.OK()
	}

	if st := chain(context.Background(), testInfo(), handler); !st.IsOK() {
		t.Fatalf("unexpected status: %v", st)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) uplink.Status {
		called = true
		return uplink.OK()
	}

	if st := chain(context.Background(), testInfo(), handler); !st.IsOK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesFailure(t *testing.T) {
	mw := func(ctx context.Context, _ middleware.Info, next middleware.Handler) uplink.Status {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonUploaderUnavailable, "no transport")

	got := chain(context.Background(), testInfo(), func(_ context.Context) uplink.Status {
		return want
	})
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())
	info := middleware.Info{JobID: id.NewJobID(), Name: "panicky"}

	st := mw(context.Background(), info, func(_ context.Context) uplink.Status {
		panic("test panic")
	})
	if st.Code != uplink.CodeInternal {
		t.Fatalf("code = %v, want INTERNAL", st.Code)
	}
	if st.Reason != uplink.ReasonDelegatePanicked {
		t.Errorf("reason = %q, want %q", st.Reason, uplink.ReasonDelegatePanicked)
	}
	if !strings.Contains(st.Message, "panicky") || !strings.Contains(st.Message, "test panic") {
		t.Errorf("unexpected message: %q", st.Message)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	called := false
	st := mw(context.Background(), testInfo(), func(_ context.Context) uplink.Status {
		called = true
		return uplink.OK()
	})
	if !st.IsOK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_SuccessAndFailure(t *testing.T) {
	mw := middleware.Logging(slog.Default())

	called := false
	st := mw(context.Background(), testInfo(), func(_ context.Context) uplink.Status {
		called = true
		return uplink.OK()
	})
	if !st.IsOK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if !called {
		t.Fatal("handler not called")
	}

	want := uplink.NewStatus(uplink.CodeInternal, uplink.ReasonDelegatePanicked, "boom")
	got := mw(context.Background(), testInfo(), func(_ context.Context) uplink.Status {
		return want
	})
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// ──────────────────────────────────────────────────
// Apply
// ──────────────────────────────────────────────────

type countingDelegate struct {
	completes int
	cancels   int
	outcome   uplink.Status
}

func (d *countingDelegate) Complete() uplink.Status {
	d.completes++
	return d.outcome
}

func (d *countingDelegate) Cancel(reason uplink.Status) uplink.Status {
	d.cancels++
	return reason
}

func TestApply_WrapsComplete(t *testing.T) {
	inner := &countingDelegate{outcome: uplink.OK()}
	wrapped := 0
	mw := func(ctx context.Context, _ middleware.Info, next middleware.Handler) uplink.Status {
		wrapped++
		return next(ctx)
	}

	d := middleware.Apply(inner, testInfo(), mw)
	if st := d.Complete(); !st.IsOK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if inner.completes != 1 {
		t.Errorf("inner Complete called %d times, want 1", inner.completes)
	}
	if wrapped != 1 {
		t.Errorf("middleware ran %d times, want 1", wrapped)
	}
}

func TestApply_CancelBypassesChain(t *testing.T) {
	inner := &countingDelegate{outcome: uplink.OK()}
	ran := false
	mw := func(ctx context.Context, _ middleware.Info, next middleware.Handler) uplink.Status {
		ran = true
		return next(ctx)
	}

	d := middleware.Apply(inner, testInfo(), mw)
	reason := uplink.NewStatus(uplink.CodeCancelled, uplink.ReasonShuttingDown, "teardown")
	if st := d.Cancel(reason); st != reason {
		t.Fatalf("Cancel status = %v, want %v", st, reason)
	}
	if inner.cancels != 1 {
		t.Errorf("inner Cancel called %d times, want 1", inner.cancels)
	}
	if ran {
		t.Error("middleware ran during Cancel")
	}
}

func TestApply_NoMiddlewareReturnsSameDelegate(t *testing.T) {
	inner := &countingDelegate{outcome: uplink.OK()}
	if got := middleware.Apply(inner, testInfo()); got != inner {
		t.Error("Apply with no middleware should return the delegate unchanged")
	}
}
