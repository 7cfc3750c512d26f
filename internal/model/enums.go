package model

// SessionStatus follows the state machine:
// scheduled -> active -> ended, scheduled -> cancelled.
// ended and cancelled are terminal.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusEnded     SessionStatus = "ended"
	SessionStatusCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionStatusEnded || s == SessionStatusCancelled
}

// EndReason records why a session left the active/scheduled state.
type EndReason string

const (
	EndReasonManual    EndReason = "manual"
	EndReasonTimeLimit EndReason = "time_limit"
	EndReasonAllLeft   EndReason = "all_left"
	EndReasonCancelled EndReason = "cancelled"
)

// ValidEndReason reports whether r is accepted by the end operation.
// cancelled is reserved for the cancel transition and is not a valid
// caller-supplied end reason.
func ValidEndReason(r EndReason) bool {
	switch r {
	case EndReasonManual, EndReasonTimeLimit, EndReasonAllLeft:
		return true
	}
	return false
}

// LinkReason is the machine-readable reason a link is not consumable.
type LinkReason string

const (
	LinkReasonNotFound LinkReason = "not_found"
	LinkReasonExpired  LinkReason = "expired"
	LinkReasonUsed     LinkReason = "used"
)
