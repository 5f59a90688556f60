package ownership

import "errors"

// Sentinel errors for lease operations. Both are routine coordination
// outcomes rather than faults; callers branch on them, they are never
// surfaced as failures.
var (
	// ErrDenied indicates another instance holds an unexpired lease, or
	// the device is in its post-conflict backoff window.
	ErrDenied = errors.New("ownership denied")

	// ErrLost indicates this instance no longer holds the lease it is
	// trying to renew.
	ErrLost = errors.New("ownership lost")
)
