// Package presence tracks which participants are currently inside a
// session, using a Redis set with a TTL that client heartbeats refresh.
// Membership is client-reported and therefore advisory: it can end a
// session early via the all_left path but can never extend one, since
// the auto-end instant is enforced server-side.
package presence

import (
	"context"
	"time"

	redisclient "github.com/meetsuite/meeting-server-go/internal/redis"
)

type Tracker struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewTracker(client *redisclient.Client, ttl time.Duration) *Tracker {
	return &Tracker{client: client, ttl: ttl}
}

// Join records a participant as present and refreshes the set's TTL.
func (t *Tracker) Join(ctx context.Context, sessionID, participantID string) error {
	key := redisclient.PresenceKey(sessionID)
	pipe := t.client.TxPipeline()
	pipe.SAdd(ctx, key, participantID)
	pipe.Expire(ctx, key, t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Heartbeat keeps the presence set alive; stale sets expire on their own
// when every client in a session goes silent.
func (t *Tracker) Heartbeat(ctx context.Context, sessionID string) error {
	return t.client.Expire(ctx, redisclient.PresenceKey(sessionID), t.ttl).Err()
}

// Leave removes a participant and returns how many remain tracked.
func (t *Tracker) Leave(ctx context.Context, sessionID, participantID string) (int64, error) {
	key := redisclient.PresenceKey(sessionID)
	pipe := t.client.TxPipeline()
	pipe.SRem(ctx, key, participantID)
	card := pipe.SCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}

// Count returns the number of tracked participants.
func (t *Tracker) Count(ctx context.Context, sessionID string) (int64, error) {
	return t.client.SCard(ctx, redisclient.PresenceKey(sessionID)).Result()
}

// Clear drops the presence set, typically after the session ends.
func (t *Tracker) Clear(ctx context.Context, sessionID string) error {
	return t.client.Del(ctx, redisclient.PresenceKey(sessionID)).Err()
}
