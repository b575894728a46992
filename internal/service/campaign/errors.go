package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPausedSendNow     = errors.New("paused campaign must be resumed before send-now")
	ErrNotDeletable      = errors.New("only draft or cancelled campaigns can be deleted")
	// ErrStaleDispatch reports that a campaign left the scheduled/active
	// states while a dispatch was in flight, so its dispatch state must not
	// be advanced.
	ErrStaleDispatch = errors.New("campaign changed state during dispatch")
)
