package mediator

import "fmt"

// Reason classifies why a command was refused.
type Reason string

// Rejection reasons surfaced to callers. None of them are retried
// automatically; the requester decides whether to resubmit.
const (
	// ReasonLiquidRequired: heating was requested but the mug is empty.
	// This mirrors a device safety interlock, not a bridge policy.
	ReasonLiquidRequired Reason = "liquid_required"

	// ReasonOutOfRange: the requested target temperature falls outside
	// the device-reported safe range.
	ReasonOutOfRange Reason = "out_of_range"

	// ReasonUnreachable: the device is not connected to this instance
	// or the write failed on a dropped link.
	ReasonUnreachable Reason = "unreachable"

	// ReasonBusy: the mirrored state is too stale to evaluate a safety
	// interlock; retry after the next poll cycle.
	ReasonBusy Reason = "busy"

	// ReasonUnsupported: the command kind or attribute is not recognized.
	ReasonUnsupported Reason = "unsupported"
)

// Rejection is the error returned for refused commands.
type Rejection struct {
	Reason Reason
	Cause  error
}

func (r *Rejection) Error() string {
	if r.Cause == nil {
		return fmt.Sprintf("command rejected: %s", r.Reason)
	}
	return fmt.Sprintf("command rejected: %s: %v", r.Reason, r.Cause)
}

func (r *Rejection) Unwrap() error {
	return r.Cause
}
