package uplink

import "context"

// UploadReason tells the uploader supplier why an upload is starting.
type UploadReason int

const (
	// UploadUnknown is the zero value and should not normally be sent.
	UploadUnknown UploadReason = iota
	// UploadManual marks an upload requested explicitly by a user.
	UploadManual
	// UploadPeriodic marks an upload started by a periodic timer.
	UploadPeriodic
	// UploadImmediateFlush marks an urgent flush of queued records.
	UploadImmediateFlush
	// UploadKeyDelivery marks an uploader started solely to obtain a
	// fresh encryption key. No records accompany it.
	UploadKeyDelivery
	// UploadInitResume marks an upload resuming interrupted work at
	// daemon startup.
	UploadInitResume
	// UploadFailureRetry marks an upload retried after a failure.
	UploadFailureRetry
)

// String returns the canonical name of the reason.
func (r UploadReason) String() string {
	switch r {
	case UploadManual:
		return "MANUAL"
	case UploadPeriodic:
		return "PERIODIC"
	case UploadImmediateFlush:
		return "IMMEDIATE_FLUSH"
	case UploadKeyDelivery:
		return "KEY_DELIVERY"
	case UploadInitResume:
		return "INIT_RESUME"
	case UploadFailureRetry:
		return "FAILURE_RETRY"
	default:
		return "UNKNOWN"
	}
}

// Uploader is the external upload session capability. The core never
// constructs one; it only drives sessions obtained through an
// AsyncStartUploader callback.
type Uploader interface {
	// ProcessRecord hands one serialized record to the session. The
	// done callback reports whether the session will take more input.
	ProcessRecord(ctx context.Context, record []byte, done func(more bool))

	// ProcessGap declares count missing records starting at sequence
	// number from, so the server can account for the hole.
	ProcessGap(ctx context.Context, from uint64, count uint64, done func(more bool))

	// Completed finishes the session with the overall outcome.
	Completed(status Status)
}

// StartUploaderResultCb receives the outcome of an uploader start:
// either a usable session with an OK status, or a nil session with the
// failure status.
type StartUploaderResultCb func(up Uploader, status Status)

// InformCachedCb relays sequence numbers of records the supplier has
// already cached, letting the caller skip re-sending them. May be nil
// when the caller has no use for the information.
type InformCachedCb func(cachedSeqIDs []uint64)

// AsyncStartUploader is the externally supplied uploader-acquisition
// capability. Implementations must eventually invoke result exactly
// once; they must never block the caller.
type AsyncStartUploader func(reason UploadReason, inform InformCachedCb, result StartUploaderResultCb)

// EncryptionModule is the read-only view of encryption key state the
// core consults. Key material itself never enters this module.
type EncryptionModule interface {
	// HasEncryptionKey reports whether a usable key is present.
	HasEncryptionKey() bool

	// NeedsEncryptionKey reports whether the present key is missing,
	// expiring or otherwise due for refresh.
	NeedsEncryptionKey() bool
}
