package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/meetsuite/meeting-server-go/internal/database"
	apperrors "github.com/meetsuite/meeting-server-go/internal/errors"
	"github.com/meetsuite/meeting-server-go/internal/model"
	"github.com/meetsuite/meeting-server-go/internal/provider"
	"github.com/meetsuite/meeting-server-go/internal/repository"
	"github.com/meetsuite/meeting-server-go/internal/util"
)

type SessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	HostName  string    `json:"hostName"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ValidateResult struct {
	Valid   bool             `json:"valid"`
	Reason  model.LinkReason `json:"reason,omitempty"`
	Session *SessionSummary  `json:"session,omitempty"`
}

type JoinResult struct {
	ProviderRoomRef  string    `json:"providerRoomRef"`
	ParticipantToken string    `json:"participantToken"`
	SessionID        string    `json:"sessionId"`
	AutoEndAt        time.Time `json:"autoEndAt"`
	DurationMinutes  int       `json:"durationMinutes"`
}

// JoinService validates and atomically consumes meeting links. Join is
// the only operation that starts a session's auto-end clock.
type JoinService struct {
	db          database.TxRunner
	sessionRepo repository.SessionRepository
	linkRepo    repository.LinkRepository
	rooms       provider.Client
}

func NewJoinService(
	db database.TxRunner,
	sessionRepo repository.SessionRepository,
	linkRepo repository.LinkRepository,
	rooms provider.Client,
) *JoinService {
	return &JoinService{
		db:          db,
		sessionRepo: sessionRepo,
		linkRepo:    linkRepo,
		rooms:       rooms,
	}
}

// Validate is a read-only pre-flight check so clients can show a
// meaningful message before attempting the mutating join. It never
// changes state.
func (s *JoinService) Validate(ctx context.Context, token string) (*ValidateResult, error) {
	if token == "" {
		return nil, apperrors.MissingRequired("token")
	}

	link, err := s.linkRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if link == nil {
		return &ValidateResult{Valid: false, Reason: model.LinkReasonNotFound}, nil
	}

	now := time.Now()
	if link.Expired(now) || link.Used {
		return &ValidateResult{Valid: false, Reason: link.DenialReason(now)}, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, link.SessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return &ValidateResult{Valid: false, Reason: model.LinkReasonNotFound}, nil
	}
	// An unconsumed link on a closed session behaves like an expired one.
	// Ending a session force-expires its links, so this rarely fires.
	if session.Status.Terminal() {
		return &ValidateResult{Valid: false, Reason: model.LinkReasonExpired}, nil
	}

	return &ValidateResult{
		Valid: true,
		Session: &SessionSummary{
			ID:        session.ID,
			Title:     session.Title,
			HostName:  session.HostName,
			ExpiresAt: link.ExpiresAt,
		},
	}, nil
}

// Join claims the link for exactly one caller. The claim is a single
// conditional update in the link store, so at most one of any number of
// concurrent callers can succeed. The first claim of a scheduled session
// arms the auto-end clock; later joins never re-arm it.
func (s *JoinService) Join(ctx context.Context, token, participantID, participantName string) (*JoinResult, error) {
	if token == "" {
		return nil, apperrors.MissingRequired("token")
	}
	if strings.TrimSpace(participantID) == "" {
		return nil, apperrors.MissingRequired("participantId")
	}
	participantName = strings.TrimSpace(participantName)
	if participantName == "" {
		return nil, apperrors.MissingRequired("participantName")
	}

	now := time.Now()
	var session *model.Session

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		links := s.linkRepo.WithTx(tx)
		sessions := s.sessionRepo.WithTx(tx)

		link, err := links.Consume(ctx, token, now)
		if err != nil {
			return apperrors.Database(err)
		}
		if link == nil {
			return s.classifyDenial(ctx, links, token, now)
		}

		sess, err := sessions.FindByID(ctx, link.SessionID)
		if err != nil {
			return apperrors.Database(err)
		}
		if sess == nil {
			return apperrors.NotFound("Session")
		}
		// A consumed link must not resurrect a closed session. Returning
		// an error here rolls the claim back as well.
		if sess.Status.Terminal() {
			return apperrors.SessionClosed()
		}

		if sess.Status == model.SessionStatusScheduled {
			startedAt := now
			autoEndAt := now.Add(time.Duration(sess.DurationMinutes) * time.Minute)
			armed, err := sessions.MarkActive(ctx, sess.ID, startedAt, autoEndAt)
			if err != nil {
				return apperrors.Database(err)
			}
			if armed {
				sess.Status = model.SessionStatusActive
				sess.StartedAt = &startedAt
				sess.AutoEndAt = &autoEndAt
			} else {
				// Lost the arming race; pick up the winner's clock.
				sess, err = sessions.FindByID(ctx, sess.ID)
				if err != nil {
					return apperrors.Database(err)
				}
				if sess == nil || sess.Status.Terminal() {
					return apperrors.SessionClosed()
				}
			}
		}

		session = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	if session.AutoEndAt == nil {
		return nil, apperrors.Internal("session activated without an auto-end instant")
	}
	ttl := time.Until(*session.AutoEndAt)
	if ttl <= 0 {
		return nil, apperrors.SessionClosed()
	}

	// The provider token is scoped to the remaining budget, not the full
	// session duration.
	participantToken, err := s.rooms.MintParticipantToken(ctx, session.RoomName, participantName, ttl)
	if err != nil {
		log.Error().Err(err).
			Str("sessionId", session.ID).
			Str("participantId", participantID).
			Msg("participant token mint failed after link consumption")
		return nil, apperrors.Provider("participant token mint", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("participantId", participantID).
		Str("token", util.MaskToken(token)).
		Time("autoEndAt", *session.AutoEndAt).
		Msg("participant joined")

	return &JoinResult{
		ProviderRoomRef:  session.RoomName,
		ParticipantToken: participantToken,
		SessionID:        session.ID,
		AutoEndAt:        *session.AutoEndAt,
		DurationMinutes:  session.DurationMinutes,
	}, nil
}

// classifyDenial explains a failed conditional claim. The caller must
// not retry the same token for any of these.
func (s *JoinService) classifyDenial(ctx context.Context, links repository.LinkRepository, token string, now time.Time) error {
	link, err := links.FindByToken(ctx, token)
	if err != nil {
		return apperrors.Database(err)
	}
	if link == nil {
		return apperrors.NotFound("Meeting link")
	}
	switch link.DenialReason(now) {
	case model.LinkReasonExpired:
		return apperrors.LinkExpired()
	case model.LinkReasonUsed:
		return apperrors.LinkUsed()
	}
	return apperrors.Conflict(fmt.Sprintf("meeting link %s could not be claimed", util.MaskToken(token)))
}
