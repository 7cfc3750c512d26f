package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/meetsuite/meeting-server-go/internal/database"
	apperrors "github.com/meetsuite/meeting-server-go/internal/errors"
	"github.com/meetsuite/meeting-server-go/internal/model"
	"github.com/meetsuite/meeting-server-go/internal/provider"
	"github.com/meetsuite/meeting-server-go/internal/repository"
	"github.com/meetsuite/meeting-server-go/internal/util"
)

const maxTitleLength = 200

type CreateMeetingParams struct {
	HostID          string `json:"hostId"`
	HostName        string `json:"hostName"`
	Title           string `json:"title"`
	MaxParticipants int    `json:"maxParticipants"`
	DurationMinutes int    `json:"durationMinutes"`
}

type CreateMeetingResult struct {
	SessionID       string    `json:"sessionId"`
	JoinURL         string    `json:"joinUrl"`
	Token           string    `json:"token"`
	ExpiresAt       time.Time `json:"expiresAt"`
	DurationMinutes int       `json:"durationMinutes"`
}

// IssuerService mints a session, its provider room and a single-use
// join link as one create operation.
type IssuerService struct {
	db                 database.TxRunner
	sessionRepo        repository.SessionRepository
	linkRepo           repository.LinkRepository
	rooms              provider.Client
	publicBaseURL      string
	maxDurationMinutes int
}

func NewIssuerService(
	db database.TxRunner,
	sessionRepo repository.SessionRepository,
	linkRepo repository.LinkRepository,
	rooms provider.Client,
	publicBaseURL string,
	maxDurationMinutes int,
) *IssuerService {
	return &IssuerService{
		db:                 db,
		sessionRepo:        sessionRepo,
		linkRepo:           linkRepo,
		rooms:              rooms,
		publicBaseURL:      strings.TrimRight(publicBaseURL, "/"),
		maxDurationMinutes: maxDurationMinutes,
	}
}

func (s *IssuerService) Create(ctx context.Context, params CreateMeetingParams) (*CreateMeetingResult, error) {
	if strings.TrimSpace(params.HostID) == "" {
		return nil, apperrors.MissingRequired("hostId")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, apperrors.MissingRequired("title")
	}
	if len(title) > maxTitleLength {
		return nil, apperrors.InvalidInput("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	if params.MaxParticipants < 0 {
		return nil, apperrors.InvalidInput("maxParticipants", "must not be negative")
	}

	duration := s.clampDuration(params.DurationMinutes)
	now := time.Now()
	expiresAt := now.Add(time.Duration(duration) * time.Minute)

	sessionID := uuid.NewString()
	roomName := "meet-" + sessionID

	// The provider tears the room down itself at expiry, independent of
	// our own enforcement.
	room, err := s.rooms.CreateRoom(ctx, roomName, expiresAt)
	if err != nil {
		log.Error().Err(err).Str("roomName", roomName).Msg("provider room creation failed")
		return nil, apperrors.Provider("room creation", err)
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("failed to generate link token").WithCause(err)
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.sessionRepo.WithTx(tx).Create(ctx, model.CreateSessionParams{
			ID:              sessionID,
			HostID:          params.HostID,
			HostName:        strings.TrimSpace(params.HostName),
			Title:           title,
			RoomName:        room.Name,
			RoomURL:         room.URL,
			DurationMinutes: duration,
			MaxParticipants: params.MaxParticipants,
		}); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if _, err := s.linkRepo.WithTx(tx).Create(ctx, model.CreateLinkParams{
			Token:     token,
			SessionID: sessionID,
			ExpiresAt: expiresAt,
			MaxUses:   1,
			CreatedBy: params.HostID,
		}); err != nil {
			return fmt.Errorf("create link: %w", err)
		}
		return nil
	})
	if err != nil {
		// The room exists but the local rows do not. Log it for
		// reconciliation and surface the orphan distinctly.
		log.Error().Err(err).
			Str("sessionId", sessionID).
			Str("roomName", room.Name).
			Msg("orphaned provider room: persistence failed after room creation")
		return nil, apperrors.RoomOrphaned(room.Name, err)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("hostId", params.HostID).
		Str("token", util.MaskToken(token)).
		Int("durationMinutes", duration).
		Time("expiresAt", expiresAt).
		Msg("meeting created")

	return &CreateMeetingResult{
		SessionID:       sessionID,
		JoinURL:         fmt.Sprintf("%s/join/%s", s.publicBaseURL, token),
		Token:           token,
		ExpiresAt:       expiresAt,
		DurationMinutes: duration,
	}, nil
}

func (s *IssuerService) clampDuration(requested int) int {
	if requested <= 0 || requested > s.maxDurationMinutes {
		return s.maxDurationMinutes
	}
	return requested
}
