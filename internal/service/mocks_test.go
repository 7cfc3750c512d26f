package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/meetsuite/meeting-server-go/internal/database"
	"github.com/meetsuite/meeting-server-go/internal/model"
	"github.com/meetsuite/meeting-server-go/internal/provider"
	"github.com/meetsuite/meeting-server-go/internal/repository"
)

// passthroughTx runs the transaction function directly; mock
// repositories return themselves from WithTx, so services under test
// exercise the same code path without a database.
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

var _ database.TxRunner = passthroughTx{}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindByRoomName(ctx context.Context, roomName string) (*model.Session, error) {
	args := m.Called(ctx, roomName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) MarkActive(ctx context.Context, id string, startedAt, autoEndAt time.Time) (bool, error) {
	args := m.Called(ctx, id, startedAt, autoEndAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) MarkEnded(ctx context.Context, id string, endedAt time.Time, reason model.EndReason, durationSeconds *int) (bool, error) {
	args := m.Called(ctx, id, endedAt, reason, durationSeconds)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error) {
	args := m.Called(ctx, id, cancelledAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) FindOverdue(ctx context.Context, now time.Time) ([]model.Session, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockLinkRepo struct {
	mock.Mock
}

func (m *mockLinkRepo) Create(ctx context.Context, params model.CreateLinkParams) (*model.MeetingLink, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MeetingLink), args.Error(1)
}

func (m *mockLinkRepo) FindByToken(ctx context.Context, token string) (*model.MeetingLink, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MeetingLink), args.Error(1)
}

func (m *mockLinkRepo) Consume(ctx context.Context, token string, now time.Time) (*model.MeetingLink, error) {
	args := m.Called(ctx, token, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MeetingLink), args.Error(1)
}

func (m *mockLinkRepo) ExpireForSession(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	args := m.Called(ctx, sessionID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLinkRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLinkRepo) WithTx(tx *sqlx.Tx) repository.LinkRepository {
	return m
}

type mockProviderClient struct {
	mock.Mock
}

func (m *mockProviderClient) CreateRoom(ctx context.Context, name string, expiry time.Time) (*provider.Room, error) {
	args := m.Called(ctx, name, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Room), args.Error(1)
}

func (m *mockProviderClient) DeleteRoom(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockProviderClient) MintParticipantToken(ctx context.Context, roomName, participantName string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, roomName, participantName, ttl)
	return args.String(0), args.Error(1)
}
