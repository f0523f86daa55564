package uplink

import "fmt"

// Code classifies a Status result. The zero value is CodeOK.
type Code int

const (
	// CodeOK means the operation succeeded.
	CodeOK Code = iota
	// CodeCancelled means the operation was cancelled before running.
	CodeCancelled
	// CodeInvalidArgument means the caller supplied an unusable value.
	CodeInvalidArgument
	// CodeResourceExhausted means admission was refused for lack of
	// capacity (semaphore saturated, ceiling off, enqueue throttled).
	CodeResourceExhausted
	// CodeFailedPrecondition means the component is not in a state
	// where the operation can ever succeed without outside action.
	CodeFailedPrecondition
	// CodeUnavailable means the operation was attempted from the wrong
	// lifecycle state, or the component has been torn down.
	CodeUnavailable
	// CodeInternal means an unexpected fault inside a delegate, such
	// as a recovered panic.
	CodeInternal
)

// String returns the canonical name of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeCancelled:
		return "CANCELLED"
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodeResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case CodeFailedPrecondition:
		return "FAILED_PRECONDITION"
	case CodeUnavailable:
		return "UNAVAILABLE"
	case CodeInternal:
		return "INTERNAL"
	default:
		return fmt.Sprintf("CODE(%d)", int(c))
	}
}

// Reason is a stable machine-readable tag distinguishing the causes of
// a non-OK Status. Operators match on Reason, never on Message text.
type Reason string

const (
	// ReasonNone marks a Status without a specific cause tag.
	ReasonNone Reason = ""
	// ReasonSchedulerOff tags rejections while the ceiling is off.
	ReasonSchedulerOff Reason = "scheduler off"
	// ReasonEnqueueThrottled tags rejections by the enqueue limiter.
	ReasonEnqueueThrottled Reason = "enqueue throttled"
	// ReasonSemaphoreSaturated tags a failed slot acquisition.
	ReasonSemaphoreSaturated Reason = "semaphore saturated"
	// ReasonJobAlreadyRunning tags a Start or Cancel on a running job.
	ReasonJobAlreadyRunning Reason = "job already running"
	// ReasonJobAlreadyFinished tags an operation on a terminal job.
	ReasonJobAlreadyFinished Reason = "job already finished"
	// ReasonJobAlreadyCancelled tags an operation on a job whose
	// cancellation is already pending.
	ReasonJobAlreadyCancelled Reason = "job already cancelled-pending"
	// ReasonCancelWithoutCause tags a Cancel carrying an OK status.
	ReasonCancelWithoutCause Reason = "cancellation without cause"
	// ReasonShuttingDown tags callbacks flushed during teardown.
	ReasonShuttingDown Reason = "shutting down before delivery"
	// ReasonUploaderUnavailable tags a failed uploader acquisition.
	ReasonUploaderUnavailable Reason = "uploader unavailable"
	// ReasonDelegatePanicked tags a panic recovered from a delegate.
	ReasonDelegatePanicked Reason = "delegate panicked"
)

// Status is the uniform result type crossing every component boundary.
// It carries a Code, an optional Reason tag, and a free-text Message.
// The zero value is OK.
type Status struct {
	Code    Code
	Reason  Reason
	Message string
}

// OK returns a successful Status.
func OK() Status { return Status{} }

// NewStatus creates a Status with the given code, reason and message.
func NewStatus(code Code, reason Reason, message string) Status {
	return Status{Code: code, Reason: reason, Message: message}
}

// NewStatusf creates a Status with a formatted message.
func NewStatusf(code Code, reason Reason, format string, args ...any) Status {
	return Status{Code: code, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// IsOK reports whether the Status carries CodeOK.
func (s Status) IsOK() bool { return s.Code == CodeOK }

// String renders the Status for logs.
func (s Status) String() string {
	if s.IsOK() {
		return "OK"
	}
	switch {
	case s.Reason != ReasonNone && s.Message != "":
		return fmt.Sprintf("%s [%s]: %s", s.Code, s.Reason, s.Message)
	case s.Reason != ReasonNone:
		return fmt.Sprintf("%s [%s]", s.Code, s.Reason)
	case s.Message != "":
		return fmt.Sprintf("%s: %s", s.Code, s.Message)
	default:
		return s.Code.String()
	}
}

// Err bridges a Status to the error interface: nil for an OK Status,
// a statusError wrapping s otherwise.
func (s Status) Err() error {
	if s.IsOK() {
		return nil
	}
	return statusError{s}
}

// StatusFromError recovers a Status from an error produced by Err.
// Any other error maps to CodeInternal with the error text.
func StatusFromError(err error) Status {
	if err == nil {
		return OK()
	}
	if se, ok := err.(statusError); ok {
		return se.status
	}
	return NewStatus(CodeInternal, ReasonNone, err.Error())
}

type statusError struct {
	status Status
}

func (e statusError) Error() string { return e.status.String() }
