package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meetsuite/meeting-server-go/internal/config"
	apperrors "github.com/meetsuite/meeting-server-go/internal/errors"
	"github.com/meetsuite/meeting-server-go/internal/model"
	"github.com/meetsuite/meeting-server-go/internal/provider"
	"github.com/meetsuite/meeting-server-go/internal/repository"
)

// SweepActor is the identity the background sweep supplies when forcing
// a time_limit termination.
const SweepActor = "system:sweep"

type StatusResult struct {
	Status               model.SessionStatus `json:"status"`
	TimeExceeded         bool                `json:"timeExceeded"`
	TimeRemainingSeconds *int                `json:"timeRemainingSeconds,omitempty"`
	AutoEndAt            *time.Time          `json:"autoEndAt,omitempty"`
	EndReason            *model.EndReason    `json:"endReason,omitempty"`
	StartedAt            *time.Time          `json:"startedAt,omitempty"`
	EndedAt              *time.Time          `json:"endedAt,omitempty"`
}

type EndParams struct {
	SessionID       string
	ActorID         string
	Reason          model.EndReason
	DurationSeconds *int
}

type EndResult struct {
	Ended   bool            `json:"ended"`
	EndedAt time.Time       `json:"endedAt"`
	Reason  model.EndReason `json:"reason"`
}

// LifecycleService reads the remaining time budget of a session and
// performs the terminal transitions. Check and act are separate calls so
// read-heavy countdown polling creates no write contention.
type LifecycleService struct {
	sessionRepo repository.SessionRepository
	linkRepo    repository.LinkRepository
	rooms       provider.Client
	admins      map[string]bool
}

func NewLifecycleService(
	sessionRepo repository.SessionRepository,
	linkRepo repository.LinkRepository,
	rooms provider.Client,
	admins map[string]bool,
) *LifecycleService {
	return &LifecycleService{
		sessionRepo: sessionRepo,
		linkRepo:    linkRepo,
		rooms:       rooms,
		admins:      admins,
	}
}

// Status is a pure read of the persisted auto-end instant. It performs
// no mutation; enforcement is an explicit End call.
func (s *LifecycleService) Status(ctx context.Context, sessionID string) (*StatusResult, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	now := time.Now()
	return &StatusResult{
		Status:               session.Status,
		TimeExceeded:         session.TimeExceeded(now),
		TimeRemainingSeconds: session.RemainingSeconds(now),
		AutoEndAt:            session.AutoEndAt,
		EndReason:            session.EndReason,
		StartedAt:            session.StartedAt,
		EndedAt:              session.EndedAt,
	}, nil
}

// End transitions a session to ended, revokes its outstanding links and
// releases the provider room. Ending an already ended session is a no-op
// success: a human leave action and the automatic time-limit sweep may
// race to end the same session.
func (s *LifecycleService) End(ctx context.Context, params EndParams) (*EndResult, error) {
	if strings.TrimSpace(params.SessionID) == "" {
		return nil, apperrors.MissingRequired("sessionId")
	}
	if !model.ValidEndReason(params.Reason) {
		return nil, apperrors.InvalidInput("reason", "must be one of manual, time_limit, all_left")
	}
	if params.DurationSeconds != nil && *params.DurationSeconds < 0 {
		return nil, apperrors.InvalidInput("durationSeconds", "must not be negative")
	}

	session, err := s.sessionRepo.FindByID(ctx, params.SessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	// A manual end is privileged; time_limit and all_left are safety
	// nets triggered by automation, not by a human actor.
	if params.Reason == model.EndReasonManual && !s.canEnd(session, params.ActorID) {
		return nil, apperrors.Forbidden("Only the host or an administrator may end this meeting")
	}

	if session.Status.Terminal() {
		return terminalResult(session), nil
	}

	now := time.Now()
	ended, err := s.sessionRepo.MarkEnded(ctx, params.SessionID, now, params.Reason, params.DurationSeconds)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !ended {
		// Someone else completed a terminal transition in between.
		session, err = s.sessionRepo.FindByID(ctx, params.SessionID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if session != nil && session.Status.Terminal() {
			return terminalResult(session), nil
		}
		return nil, apperrors.Conflict("session could not be ended")
	}

	s.revokeAndRelease(ctx, session, now)

	log.Info().
		Str("sessionId", params.SessionID).
		Str("actorId", params.ActorID).
		Str("reason", string(params.Reason)).
		Msg("meeting ended")

	return &EndResult{Ended: true, EndedAt: now, Reason: params.Reason}, nil
}

// Cancel transitions a scheduled session straight to cancelled before
// anyone has joined. Idempotent on an already cancelled session.
func (s *LifecycleService) Cancel(ctx context.Context, sessionID, actorID string) (*EndResult, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if !s.canEnd(session, actorID) {
		return nil, apperrors.Forbidden("Only the host or an administrator may cancel this meeting")
	}
	if session.Status == model.SessionStatusCancelled {
		return terminalResult(session), nil
	}

	now := time.Now()
	cancelled, err := s.sessionRepo.MarkCancelled(ctx, sessionID, now)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !cancelled {
		return nil, apperrors.Conflict("only a scheduled meeting can be cancelled")
	}

	s.revokeAndRelease(ctx, session, now)

	log.Info().
		Str("sessionId", sessionID).
		Str("actorId", actorID).
		Msg("meeting cancelled")

	return &EndResult{Ended: true, EndedAt: now, Reason: model.EndReasonCancelled}, nil
}

// EndIfOverdue ends the session with reason time_limit when its auto-end
// instant has passed. Used by the sweep job and the provider webhook; a
// session that is not overdue is left untouched.
func (s *LifecycleService) EndIfOverdue(ctx context.Context, sessionID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return apperrors.Database(err)
	}
	if session == nil || session.Status != model.SessionStatusActive || !session.TimeExceeded(time.Now()) {
		return nil
	}

	_, err = s.End(ctx, EndParams{
		SessionID: sessionID,
		ActorID:   SweepActor,
		Reason:    model.EndReasonTimeLimit,
	})
	return err
}

func (s *LifecycleService) canEnd(session *model.Session, actorID string) bool {
	if actorID == "" {
		return false
	}
	return actorID == session.HostID || s.admins[actorID]
}

// revokeAndRelease forces expiry of unused links and tears the room
// down. Room deletion is best effort: the provider's own backstop expiry
// cleans up eventually even if the delete call fails.
func (s *LifecycleService) revokeAndRelease(ctx context.Context, session *model.Session, now time.Time) {
	revoked, err := s.linkRepo.ExpireForSession(ctx, session.ID, now)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to revoke outstanding links")
	} else if revoked > 0 {
		log.Info().Str("sessionId", session.ID).Int64("count", revoked).Msg("revoked outstanding links")
	}

	deleteCtx, cancel := context.WithTimeout(ctx, config.RoomDeleteTimeout)
	defer cancel()
	if err := s.rooms.DeleteRoom(deleteCtx, session.RoomName); err != nil {
		log.Warn().Err(err).
			Str("sessionId", session.ID).
			Str("roomName", session.RoomName).
			Msg("provider room deletion failed, relying on provider-side expiry")
	}
}

func terminalResult(session *model.Session) *EndResult {
	result := &EndResult{Ended: true}
	if session.EndedAt != nil {
		result.EndedAt = *session.EndedAt
	}
	if session.EndReason != nil {
		result.Reason = *session.EndReason
	}
	return result
}
