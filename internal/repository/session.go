package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/meetsuite/meeting-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByRoomName(ctx context.Context, roomName string) (*model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// MarkActive arms the auto-end clock. The update is conditional on
	// status = 'scheduled' so only the first join ever sets startedAt and
	// autoEndAt; it reports whether this call won the transition.
	MarkActive(ctx context.Context, id string, startedAt, autoEndAt time.Time) (bool, error)
	// MarkEnded transitions to 'ended'. Conditional on a non-terminal
	// status so racing terminators are idempotent; reports whether this
	// call performed the transition. When durationSeconds is nil it is
	// computed from startedAt.
	MarkEnded(ctx context.Context, id string, endedAt time.Time, reason model.EndReason, durationSeconds *int) (bool, error)
	// MarkCancelled transitions 'scheduled' -> 'cancelled'.
	MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error)
	// FindOverdue returns active sessions whose auto-end instant has passed.
	FindOverdue(ctx context.Context, now time.Time) ([]model.Session, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByRoomName(ctx context.Context, roomName string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE room_name = $1
	`, roomName)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (id, host_id, host_name, title, room_name, room_url, status, duration_minutes, max_participants)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', $7, $8)
		RETURNING *
	`, params.ID, params.HostID, params.HostName, params.Title,
		params.RoomName, params.RoomURL, params.DurationMinutes, params.MaxParticipants)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) MarkActive(ctx context.Context, id string, startedAt, autoEndAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'active',
			started_at = $2,
			auto_end_at = $3,
			updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
	`, id, startedAt, autoEndAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *sessionRepo) MarkEnded(ctx context.Context, id string, endedAt time.Time, reason model.EndReason, durationSeconds *int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'ended',
			ended_at = $2,
			end_reason = $3,
			duration_seconds = COALESCE($4, CASE
				WHEN started_at IS NOT NULL THEN EXTRACT(EPOCH FROM ($2::timestamptz - started_at))::int
			END),
			updated_at = $2
		WHERE id = $1 AND status IN ('scheduled', 'active')
	`, id, endedAt, reason, durationSeconds)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *sessionRepo) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'cancelled',
			ended_at = $2,
			end_reason = 'cancelled',
			updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
	`, id, cancelledAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *sessionRepo) FindOverdue(ctx context.Context, now time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE status = 'active' AND auto_end_at <= $1
		ORDER BY auto_end_at
	`, now)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
