package model

import (
	"time"
)

type Session struct {
	ID              string        `db:"id" json:"id"`
	HostID          string        `db:"host_id" json:"hostId"`
	HostName        string        `db:"host_name" json:"hostName"`
	Title           string        `db:"title" json:"title"`
	RoomName        string        `db:"room_name" json:"-"`
	RoomURL         string        `db:"room_url" json:"-"`
	Status          SessionStatus `db:"status" json:"status"`
	DurationMinutes int           `db:"duration_minutes" json:"durationMinutes"`
	MaxParticipants int           `db:"max_participants" json:"maxParticipants"`
	StartedAt       *time.Time    `db:"started_at" json:"startedAt,omitempty"`
	AutoEndAt       *time.Time    `db:"auto_end_at" json:"autoEndAt,omitempty"`
	EndedAt         *time.Time    `db:"ended_at" json:"endedAt,omitempty"`
	EndReason       *EndReason    `db:"end_reason" json:"endReason,omitempty"`
	DurationSeconds *int          `db:"duration_seconds" json:"durationSeconds,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreateSessionParams struct {
	ID              string
	HostID          string
	HostName        string
	Title           string
	RoomName        string
	RoomURL         string
	DurationMinutes int
	MaxParticipants int
}

// TimeExceeded reports whether the session has outlived its time budget.
// A session that never started has no budget running.
func (s *Session) TimeExceeded(now time.Time) bool {
	return s.AutoEndAt != nil && !now.Before(*s.AutoEndAt)
}

// RemainingSeconds returns the seconds left before auto-end, or nil when
// the budget is not armed or already exhausted.
func (s *Session) RemainingSeconds(now time.Time) *int {
	if s.AutoEndAt == nil || s.Status != SessionStatusActive {
		return nil
	}
	secs := int(s.AutoEndAt.Sub(now).Seconds())
	if secs < 0 {
		return nil
	}
	return &secs
}
