package uplink

import "errors"

var (
	// Construction errors.
	ErrNoEncryptionModule = errors.New("uplink: no encryption module supplied")
	ErrNoUploaderStarter  = errors.New("uplink: no uploader start callback supplied")
	ErrNoDelegate         = errors.New("uplink: no job delegate supplied")
	ErrNoScheduler        = errors.New("uplink: no scheduler supplied")
	ErrNoFillFunc         = errors.New("uplink: no fill function supplied")

	// Lifecycle errors.
	ErrClosed = errors.New("uplink: component closed")
)
