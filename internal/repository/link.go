package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/meetsuite/meeting-server-go/internal/model"
)

// LinkRepository handles meeting link data operations.
type LinkRepository interface {
	Create(ctx context.Context, params model.CreateLinkParams) (*model.MeetingLink, error)
	FindByToken(ctx context.Context, token string) (*model.MeetingLink, error)
	// Consume claims the link with a single conditional update: the row is
	// marked used only if it is still unused and unexpired at the moment
	// the statement runs. Under concurrent callers the database guarantees
	// at most one of them gets the row back; everyone else gets nil.
	Consume(ctx context.Context, token string, now time.Time) (*model.MeetingLink, error)
	// ExpireForSession forces expiry of all unused links of a session to
	// now, making them permanently unconsumable.
	ExpireForSession(ctx context.Context, sessionID string, now time.Time) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) LinkRepository
}

type linkRepo struct {
	db sessionDB
}

func NewLinkRepository(db *sqlx.DB) LinkRepository {
	return &linkRepo{db: db}
}

func (r *linkRepo) WithTx(tx *sqlx.Tx) LinkRepository {
	return &linkRepo{db: tx}
}

func (r *linkRepo) Create(ctx context.Context, params model.CreateLinkParams) (*model.MeetingLink, error) {
	var link model.MeetingLink
	err := r.db.GetContext(ctx, &link, `
		INSERT INTO meeting_links (token, session_id, expires_at, max_uses, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.Token, params.SessionID, params.ExpiresAt, params.MaxUses, params.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepo) FindByToken(ctx context.Context, token string) (*model.MeetingLink, error) {
	var link model.MeetingLink
	err := r.db.GetContext(ctx, &link, `
		SELECT * FROM meeting_links WHERE token = $1
	`, token)
	return HandleNotFound(&link, err)
}

func (r *linkRepo) Consume(ctx context.Context, token string, now time.Time) (*model.MeetingLink, error) {
	var link model.MeetingLink
	err := r.db.GetContext(ctx, &link, `
		UPDATE meeting_links SET
			used = TRUE,
			use_count = use_count + 1
		WHERE token = $1
		AND used = FALSE
		AND use_count < max_uses
		AND expires_at > $2
		RETURNING *
	`, token, now)
	return HandleNotFound(&link, err)
}

func (r *linkRepo) ExpireForSession(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE meeting_links SET expires_at = $2
		WHERE session_id = $1 AND used = FALSE AND expires_at > $2
	`, sessionID, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *linkRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM meeting_links WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
