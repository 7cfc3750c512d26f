package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meetsuite/meeting-server-go/internal/config"
	"github.com/meetsuite/meeting-server-go/internal/model"
	"github.com/meetsuite/meeting-server-go/internal/repository"
	"github.com/meetsuite/meeting-server-go/internal/service"
)

// Terminator is the slice of the lifecycle service the sweep needs.
type Terminator interface {
	End(ctx context.Context, params service.EndParams) (*service.EndResult, error)
}

// SweepJob periodically force-terminates active sessions whose auto-end
// instant has passed and purges long-dead link rows. Every write it
// triggers is conditional, so any number of instances can run the sweep
// concurrently with each other and with manual end calls.
type SweepJob struct {
	sessionRepo repository.SessionRepository
	linkRepo    repository.LinkRepository
	terminator  Terminator
	interval    time.Duration
	done        chan struct{}
}

func NewSweepJob(
	sessionRepo repository.SessionRepository,
	linkRepo repository.LinkRepository,
	terminator Terminator,
	interval time.Duration,
) *SweepJob {
	return &SweepJob{
		sessionRepo: sessionRepo,
		linkRepo:    linkRepo,
		terminator:  terminator,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.endOverdue(ctx)
	j.purgeDeadLinks(ctx)
}

func (j *SweepJob) endOverdue(ctx context.Context) {
	sessions, err := j.sessionRepo.FindOverdue(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("sweep: failed to list overdue sessions")
		return
	}

	for _, session := range sessions {
		_, err := j.terminator.End(ctx, service.EndParams{
			SessionID: session.ID,
			ActorID:   service.SweepActor,
			Reason:    model.EndReasonTimeLimit,
		})
		if err != nil {
			log.Error().Err(err).Str("sessionId", session.ID).Msg("sweep: failed to end overdue session")
			continue
		}
		log.Info().Str("sessionId", session.ID).Msg("sweep: ended overdue session")
	}
}

func (j *SweepJob) purgeDeadLinks(ctx context.Context) {
	count, err := j.linkRepo.DeleteExpiredBefore(ctx, time.Now().Add(-config.LinkRetention))
	if err != nil {
		log.Error().Err(err).Msg("sweep: failed to purge dead links")
		return
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("sweep: purged dead links")
	}
}
