package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/id"
)

func parseUploadReason(s string) (uplink.UploadReason, error) {
	switch s {
	case "manual":
		return uplink.UploadManual, nil
	case "", "periodic":
		return uplink.UploadPeriodic, nil
	case "immediate_flush":
		return uplink.UploadImmediateFlush, nil
	default:
		return uplink.UploadUnknown, fmt.Errorf("unknown upload reason %q", s)
	}
}

// logUploader is a stand-in upload session used until a real transport
// collaborator is attached. It logs what it is given and accepts
// everything.
type logUploader struct {
	logger *slog.Logger
	uplID  id.ID
	reason uplink.UploadReason
}

func (u *logUploader) ProcessRecord(_ context.Context, record []byte, done func(bool)) {
	u.logger.Debug("record processed",
		slog.Any("uploader_id", u.uplID),
		slog.Int("bytes", len(record)),
	)
	done(true)
}

func (u *logUploader) ProcessGap(_ context.Context, from, count uint64, done func(bool)) {
	u.logger.Warn("gap processed",
		slog.Any("uploader_id", u.uplID),
		slog.Uint64("from", from),
		slog.Uint64("count", count),
	)
	done(true)
}

func (u *logUploader) Completed(status uplink.Status) {
	u.logger.Info("upload session completed",
		slog.Any("uploader_id", u.uplID),
		slog.String("reason", u.reason.String()),
		slog.String("status", status.String()),
	)
}

// newUploaderStarter returns an AsyncStartUploader handing out
// logUploaders.
func newUploaderStarter(logger *slog.Logger) uplink.AsyncStartUploader {
	return func(reason uplink.UploadReason, _ uplink.InformCachedCb, result uplink.StartUploaderResultCb) {
		result(&logUploader{
			logger: logger,
			uplID:  id.NewUploaderID(),
			reason: reason,
		}, uplink.OK())
	}
}

// staticEncryption reports a permanently valid encryption key, so the
// periodic key update stays quiet until a real encryption module is
// attached.
type staticEncryption struct{}

func (staticEncryption) HasEncryptionKey() bool   { return true }
func (staticEncryption) NeedsEncryptionKey() bool { return false }
