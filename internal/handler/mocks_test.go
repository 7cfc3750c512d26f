package handler

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/meetsuite/meeting-server-go/internal/model"
	"github.com/meetsuite/meeting-server-go/internal/provider"
	"github.com/meetsuite/meeting-server-go/internal/repository"
)

type stubSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	byRoom   map[string]*model.Session
	ended    []string
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{
		sessions: make(map[string]*model.Session),
		byRoom:   make(map[string]*model.Session),
	}
}

func (s *stubSessionRepo) add(session *model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	s.byRoom[session.RoomName] = session
}

func (s *stubSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id], nil
}

func (s *stubSessionRepo) FindByRoomName(ctx context.Context, roomName string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byRoom[roomName], nil
}

func (s *stubSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) MarkActive(ctx context.Context, id string, startedAt, autoEndAt time.Time) (bool, error) {
	return false, nil
}

func (s *stubSessionRepo) MarkEnded(ctx context.Context, id string, endedAt time.Time, reason model.EndReason, durationSeconds *int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.Status.Terminal() {
		return false, nil
	}
	session.Status = model.SessionStatusEnded
	session.EndedAt = &endedAt
	session.EndReason = &reason
	s.ended = append(s.ended, id)
	return true, nil
}

func (s *stubSessionRepo) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error) {
	return false, nil
}

func (s *stubSessionRepo) FindOverdue(ctx context.Context, now time.Time) ([]model.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return s
}

func (s *stubSessionRepo) endedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ended...)
}

type stubLinkRepo struct{}

func (s *stubLinkRepo) Create(ctx context.Context, params model.CreateLinkParams) (*model.MeetingLink, error) {
	return nil, nil
}

func (s *stubLinkRepo) FindByToken(ctx context.Context, token string) (*model.MeetingLink, error) {
	return nil, nil
}

func (s *stubLinkRepo) Consume(ctx context.Context, token string, now time.Time) (*model.MeetingLink, error) {
	return nil, nil
}

func (s *stubLinkRepo) ExpireForSession(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	return 0, nil
}

func (s *stubLinkRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *stubLinkRepo) WithTx(tx *sqlx.Tx) repository.LinkRepository {
	return s
}

type stubProviderClient struct {
	mu      sync.Mutex
	deleted []string
}

func (s *stubProviderClient) CreateRoom(ctx context.Context, name string, expiry time.Time) (*provider.Room, error) {
	return nil, nil
}

func (s *stubProviderClient) DeleteRoom(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *stubProviderClient) MintParticipantToken(ctx context.Context, roomName, participantName string, ttl time.Duration) (string, error) {
	return "test-token", nil
}

type stubPresence struct {
	mu        sync.Mutex
	remaining int64
	left      []string
	cleared   []string
}

func (s *stubPresence) Join(ctx context.Context, sessionID, participantID string) error {
	return nil
}

func (s *stubPresence) Heartbeat(ctx context.Context, sessionID string) error {
	return nil
}

func (s *stubPresence) Leave(ctx context.Context, sessionID, participantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, participantID)
	return s.remaining, nil
}

func (s *stubPresence) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, sessionID)
	return nil
}
