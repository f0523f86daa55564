package keydelivery_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/keydelivery"
)

// ──────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────

type fakeEncryption struct {
	has   atomic.Bool
	needs atomic.Bool
}

func (f *fakeEncryption) HasEncryptionKey() bool   { return f.has.Load() }
func (f *fakeEncryption) NeedsEncryptionKey() bool { return f.needs.Load() }

type fakeUploader struct {
	completions atomic.Int32
}

func (f *fakeUploader) ProcessRecord(_ context.Context, _ []byte, done func(bool)) { done(true) }
func (f *fakeUploader) ProcessGap(_ context.Context, _, _ uint64, done func(bool)) { done(true) }
func (f *fakeUploader) Completed(_ uplink.Status)                                  { f.completions.Add(1) }

// starterStub counts starts and either hands out an uploader, fails,
// or stays silent.
type starterStub struct {
	mu         sync.Mutex
	starts     int
	lastReason uplink.UploadReason
	uploader   *fakeUploader
	failWith   *uplink.Status
	silent     bool
}

func (s *starterStub) start(reason uplink.UploadReason, _ uplink.InformCachedCb, result uplink.StartUploaderResultCb) {
	s.mu.Lock()
	s.starts++
	s.lastReason = reason
	s.mu.Unlock()

	switch {
	case s.silent:
	case s.failWith != nil:
		result(nil, *s.failWith)
	default:
		result(s.uploader, uplink.OK())
	}
}

func (s *starterStub) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// cbRecorder counts invocations of one request callback.
type cbRecorder struct {
	mu    sync.Mutex
	calls int
	last  uplink.Status
}

func (r *cbRecorder) fn(st uplink.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = st
}

func (r *cbRecorder) state() (int, uplink.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.last
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func newKD(t *testing.T, enc uplink.EncryptionModule, start uplink.AsyncStartUploader) *keydelivery.KeyDelivery {
	t.Helper()
	kd, err := keydelivery.New(enc, start)
	if err != nil {
		t.Fatalf("keydelivery.New: %v", err)
	}
	return kd
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestNewValidation(t *testing.T) {
	enc := &fakeEncryption{}
	starter := &starterStub{uploader: &fakeUploader{}}

	if _, err := keydelivery.New(nil, starter.start); err != uplink.ErrNoEncryptionModule {
		t.Errorf("err = %v, want ErrNoEncryptionModule", err)
	}
	if _, err := keydelivery.New(enc, nil); err != uplink.ErrNoUploaderStarter {
		t.Errorf("err = %v, want ErrNoUploaderStarter", err)
	}
}

func TestRequestStartsKeyDeliveryUploader(t *testing.T) {
	up := &fakeUploader{}
	starter := &starterStub{uploader: up}
	kd := newKD(t, &fakeEncryption{}, starter.start)
	defer kd.Close()

	rec := &cbRecorder{}
	kd.Request(true, rec.fn)

	waitFor(t, "uploader start", func() bool { return starter.startCount() == 1 })

	starter.mu.Lock()
	reason := starter.lastReason
	starter.mu.Unlock()
	if reason != uplink.UploadKeyDelivery {
		t.Errorf("start reason = %v, want KEY_DELIVERY", reason)
	}

	// The session carries no records, so it closes immediately.
	waitFor(t, "session completed", func() bool { return up.completions.Load() == 1 })

	// The key outcome arrives through OnCompletion.
	kd.OnCompletion(uplink.OK())
	waitFor(t, "callback", func() bool {
		calls, _ := rec.state()
		return calls == 1
	})
	if _, st := rec.state(); !st.IsOK() {
		t.Errorf("callback status = %v, want OK", st)
	}
}

func TestCoalescing(t *testing.T) {
	starter := &starterStub{silent: true}
	kd := newKD(t, &fakeEncryption{}, starter.start)
	defer kd.Close()

	rec1 := &cbRecorder{}
	rec2 := &cbRecorder{}
	rec3 := &cbRecorder{}

	kd.Request(true, rec1.fn)
	waitFor(t, "first start", func() bool { return starter.startCount() == 1 })

	kd.Request(true, rec2.fn)
	kd.Request(false, rec3.fn)

	// One underlying fetch for everyone.
	time.Sleep(30 * time.Millisecond)
	if got := starter.startCount(); got != 1 {
		t.Errorf("starts = %d, want 1", got)
	}

	outcome := uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonUploaderUnavailable, "server refused")
	kd.OnCompletion(outcome)

	waitFor(t, "fan-out", func() bool {
		c1, _ := rec1.state()
		c2, _ := rec2.state()
		return c1 == 1 && c2 == 1
	})

	if _, st := rec1.state(); st != outcome {
		t.Errorf("cb1 status = %v, want %v", st, outcome)
	}
	if _, st := rec2.state(); st != outcome {
		t.Errorf("cb2 status = %v, want %v", st, outcome)
	}

	// The dropped non-mandatory callback must never fire.
	time.Sleep(30 * time.Millisecond)
	if c3, _ := rec3.state(); c3 != 0 {
		t.Errorf("dropped callback fired %d times, want 0", c3)
	}
}

func TestNonMandatoryTriggersWhenIdle(t *testing.T) {
	starter := &starterStub{silent: true}
	kd := newKD(t, &fakeEncryption{}, starter.start)
	defer kd.Close()

	rec := &cbRecorder{}
	kd.Request(false, rec.fn)

	waitFor(t, "fetch", func() bool { return starter.startCount() == 1 })

	kd.OnCompletion(uplink.OK())
	waitFor(t, "callback", func() bool {
		calls, _ := rec.state()
		return calls == 1
	})
}

func TestStartFailureReportedToAllWaiters(t *testing.T) {
	failure := uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonUploaderUnavailable, "no transport")
	starter := &starterStub{failWith: &failure}
	kd := newKD(t, &fakeEncryption{}, starter.start)
	defer kd.Close()

	rec := &cbRecorder{}
	kd.Request(true, rec.fn)

	waitFor(t, "failure callback", func() bool {
		calls, _ := rec.state()
		return calls == 1
	})
	if _, st := rec.state(); st != failure {
		t.Errorf("callback status = %v, want %v", st, failure)
	}

	// No built-in retry on failure.
	time.Sleep(30 * time.Millisecond)
	if got := starter.startCount(); got != 1 {
		t.Errorf("starts = %d after failure, want 1 (no retry)", got)
	}
}

func TestCloseFlushesPendingExactlyOnce(t *testing.T) {
	starter := &starterStub{silent: true}
	kd := newKD(t, &fakeEncryption{}, starter.start)

	recs := []*cbRecorder{{}, {}, {}}
	kd.Request(true, recs[0].fn)
	waitFor(t, "fetch", func() bool { return starter.startCount() == 1 })
	kd.Request(true, recs[1].fn)
	kd.Request(true, recs[2].fn)

	kd.Close()

	for i, rec := range recs {
		calls, st := rec.state()
		if calls != 1 {
			t.Errorf("callback %d fired %d times, want 1", i, calls)
		}
		if st.Code != uplink.CodeUnavailable || st.Reason != uplink.ReasonShuttingDown {
			t.Errorf("callback %d status = %v, want UNAVAILABLE/%q", i, st, uplink.ReasonShuttingDown)
		}
	}
}

func TestRequestAfterClose(t *testing.T) {
	starter := &starterStub{silent: true}
	kd := newKD(t, &fakeEncryption{}, starter.start)
	kd.Close()

	rec := &cbRecorder{}
	kd.Request(true, rec.fn)

	calls, st := rec.state()
	if calls != 1 {
		t.Fatalf("callback fired %d times, want 1", calls)
	}
	if st.Reason != uplink.ReasonShuttingDown {
		t.Errorf("status reason = %q, want %q", st.Reason, uplink.ReasonShuttingDown)
	}
}

func TestPeriodicUpdateRequestsWhenKeyNeeded(t *testing.T) {
	enc := &fakeEncryption{}
	enc.needs.Store(true)
	starter := &starterStub{silent: true}
	kd := newKD(t, enc, starter.start)
	defer kd.Close()

	kd.StartPeriodicKeyUpdate(10 * time.Millisecond)

	waitFor(t, "periodic fetch", func() bool { return starter.startCount() >= 1 })
}

func TestPeriodicUpdateSkipsWithValidKey(t *testing.T) {
	enc := &fakeEncryption{}
	enc.has.Store(true)
	starter := &starterStub{silent: true}
	kd := newKD(t, enc, starter.start)
	defer kd.Close()

	kd.StartPeriodicKeyUpdate(10 * time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	if got := starter.startCount(); got != 0 {
		t.Errorf("starts = %d with valid key, want 0", got)
	}
}

func TestStartPeriodicKeyUpdateAfterCloseIsInert(t *testing.T) {
	enc := &fakeEncryption{}
	enc.needs.Store(true)
	starter := &starterStub{silent: true}
	kd := newKD(t, enc, starter.start)
	kd.Close()

	kd.StartPeriodicKeyUpdate(time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	if got := starter.startCount(); got != 0 {
		t.Errorf("starts = %d after close, want 0", got)
	}
}

func TestCloseRacingPeriodicArm(t *testing.T) {
	// Arming must either land before teardown (and be stopped by it)
	// or observe the closed flag and do nothing; either way Close must
	// return with no timer goroutine left behind.
	for range 200 {
		starter := &starterStub{silent: true}
		kd := newKD(t, &fakeEncryption{}, starter.start)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			kd.StartPeriodicKeyUpdate(time.Hour)
		}()
		kd.Close()
		wg.Wait()
	}
}

func TestStartPeriodicKeyUpdateIdempotent(t *testing.T) {
	enc := &fakeEncryption{}
	enc.needs.Store(true)
	starter := &starterStub{silent: true}
	kd := newKD(t, enc, starter.start)
	defer kd.Close()

	kd.StartPeriodicKeyUpdate(300 * time.Millisecond)
	// A second call with a much shorter period must not rearm.
	kd.StartPeriodicKeyUpdate(10 * time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	if got := starter.startCount(); got != 0 {
		t.Errorf("starts = %d before the armed period elapsed, want 0", got)
	}
}
