package model

import (
	"time"
)

// MeetingLink is a single-use join credential bound to one session.
// The token itself is the primary key.
type MeetingLink struct {
	Token     string    `db:"token" json:"-"`
	SessionID string    `db:"session_id" json:"sessionId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	MaxUses   int       `db:"max_uses" json:"maxUses"`
	UseCount  int       `db:"use_count" json:"useCount"`
	Used      bool      `db:"used" json:"used"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateLinkParams struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	MaxUses   int
	CreatedBy string
}

func (l *MeetingLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// DenialReason classifies why the link cannot be consumed. Expiry is
// checked before the used flag: a link that is both expired and used
// reports expired, the more informative terminal state.
func (l *MeetingLink) DenialReason(now time.Time) LinkReason {
	if l.Expired(now) {
		return LinkReasonExpired
	}
	return LinkReasonUsed
}
