package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetsuite/meeting-server-go/internal/model"
	"github.com/meetsuite/meeting-server-go/internal/util"
)

func TestLinkRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	sessions := NewSessionRepository(db.DB)
	links := NewLinkRepository(db.DB)
	ctx := context.Background()

	session, err := sessions.Create(ctx, testSessionParams())
	require.NoError(t, err)

	token, err := util.GenerateToken()
	require.NoError(t, err)

	link, err := links.Create(ctx, model.CreateLinkParams{
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: time.Now().Add(time.Hour),
		MaxUses:   1,
		CreatedBy: session.HostID,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, link.UseCount)
	assert.False(t, link.Used)

	found, err := links.FindByToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, session.ID, found.SessionID)

	missing, err := links.FindByToken(ctx, "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLinkRepository_Consume(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	sessions := NewSessionRepository(db.DB)
	links := NewLinkRepository(db.DB)
	ctx := context.Background()

	session, err := sessions.Create(ctx, testSessionParams())
	require.NoError(t, err)

	token := createTestLink(t, links, session.ID, time.Now().Add(time.Hour))

	claimed, err := links.Consume(ctx, token, time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.True(t, claimed.Used)
	assert.Equal(t, 1, claimed.UseCount)

	// Second consume of the same token gets nothing.
	again, err := links.Consume(ctx, token, time.Now())
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestLinkRepository_Consume_Expired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	sessions := NewSessionRepository(db.DB)
	links := NewLinkRepository(db.DB)
	ctx := context.Background()

	session, err := sessions.Create(ctx, testSessionParams())
	require.NoError(t, err)

	token := createTestLink(t, links, session.ID, time.Now().Add(-time.Minute))

	claimed, err := links.Consume(ctx, token, time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed)

	// The failed claim leaves the row untouched.
	link, err := links.FindByToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.False(t, link.Used)
	assert.Equal(t, 0, link.UseCount)
}

func TestLinkRepository_Consume_ConcurrentSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	sessions := NewSessionRepository(db.DB)
	links := NewLinkRepository(db.DB)
	ctx := context.Background()

	session, err := sessions.Create(ctx, testSessionParams())
	require.NoError(t, err)

	token := createTestLink(t, links, session.ID, time.Now().Add(time.Hour))

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan *model.MeetingLink, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			claimed, err := links.Consume(ctx, token, time.Now())
			assert.NoError(t, err)
			results <- claimed
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	winners := 0
	for claimed := range results {
		if claimed != nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent claim must succeed")

	final, err := links.FindByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 1, final.UseCount)
}

func TestLinkRepository_ExpireForSession(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	sessions := NewSessionRepository(db.DB)
	links := NewLinkRepository(db.DB)
	ctx := context.Background()

	session, err := sessions.Create(ctx, testSessionParams())
	require.NoError(t, err)

	live := createTestLink(t, links, session.ID, time.Now().Add(time.Hour))
	spent := createTestLink(t, links, session.ID, time.Now().Add(time.Hour))
	_, err = links.Consume(ctx, spent, time.Now())
	require.NoError(t, err)

	now := time.Now()
	revoked, err := links.ExpireForSession(ctx, session.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), revoked)

	// The live link is now permanently unconsumable.
	claimed, err := links.Consume(ctx, live, time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestLinkRepository_DeleteExpiredBefore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	sessions := NewSessionRepository(db.DB)
	links := NewLinkRepository(db.DB)
	ctx := context.Background()

	session, err := sessions.Create(ctx, testSessionParams())
	require.NoError(t, err)

	stale := createTestLink(t, links, session.ID, time.Now().Add(-48*time.Hour))
	fresh := createTestLink(t, links, session.ID, time.Now().Add(time.Hour))

	_, err = links.DeleteExpiredBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	gone, err := links.FindByToken(ctx, stale)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := links.FindByToken(ctx, fresh)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func createTestLink(t *testing.T, links LinkRepository, sessionID string, expiresAt time.Time) string {
	t.Helper()
	token, err := util.GenerateToken()
	require.NoError(t, err)
	_, err = links.Create(context.Background(), model.CreateLinkParams{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
		MaxUses:   1,
		CreatedBy: "host-test",
	})
	require.NoError(t, err)
	return token
}
