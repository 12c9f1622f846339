// Package sweeper removes polls whose end date has passed and queues the
// result emails for the owning group's admins.
package sweeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/votify/backend/internal/models"
	"github.com/votify/backend/pkg/queue"
)

// EventPollExpired is broadcast to the group room when a poll is reaped.
const EventPollExpired = "poll_expired"

// sweepTimeout bounds one full sweep cycle.
const sweepTimeout = 30 * time.Second

// PollReaper is the storage surface the sweeper needs.
type PollReaper interface {
	ListExpiredIDs(ctx context.Context) ([]int64, error)
	Reap(ctx context.Context, pollID int64) (*models.ExpiredPoll, error)
}

// Enqueuer queues outgoing emails for the worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Broadcaster fans expiry events out to live group clients. Optional.
type Broadcaster interface {
	Publish(ctx context.Context, groupID int64, event string, payload any)
}

// Sweeper runs the expiry loop.
type Sweeper struct {
	reaper    PollReaper
	queue     Enqueuer
	broadcast Broadcaster
	interval  time.Duration
	logger    *zap.Logger
	stop      chan struct{}
	done      chan struct{}
}

// New creates a sweeper ticking at the given interval.
func New(reaper PollReaper, q Enqueuer, broadcast Broadcaster, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		reaper:    reaper,
		queue:     q,
		broadcast: broadcast,
		interval:  interval,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled. Sweeps
// run in the loop body, so cycles never overlap.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Poll sweeper started", zap.Duration("interval", s.interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
	s.logger.Info("Poll sweeper stopped")
}

// Sweep performs one expiry pass. Failures on one poll are logged and never
// block the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	ids, err := s.reaper.ListExpiredIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to list expired polls", zap.Error(err))
		return
	}

	for _, id := range ids {
		expired, err := s.reaper.Reap(ctx, id)
		if err != nil {
			s.logger.Error("Failed to reap poll", zap.Int64("poll_id", id), zap.Error(err))
			continue
		}
		if expired == nil {
			continue
		}

		s.logger.Info("Poll expired",
			zap.Int64("poll_id", expired.Poll.ID),
			zap.Int64("group_id", expired.Poll.GroupID),
			zap.Int("total_votes", expired.Poll.Votes))

		s.notifyAdmins(ctx, expired)
		if s.broadcast != nil {
			s.broadcast.Publish(ctx, expired.Poll.GroupID, EventPollExpired, map[string]any{
				"pollId": expired.Poll.ID,
				"title":  expired.Poll.Title,
			})
		}
	}
}

// notifyAdmins queues one result email per group admin. An enqueue failure
// for one admin does not stop the others.
func (s *Sweeper) notifyAdmins(ctx context.Context, expired *models.ExpiredPoll) {
	subject := fmt.Sprintf("Poll %q has ended", expired.Poll.Title)
	body := resultsBody(expired)

	for _, admin := range expired.AdminEmails {
		err := s.queue.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      models.EmailTypePollResults,
			RecipientEmail: admin,
			Subject:        subject,
			Body:           body,
		})
		if err != nil {
			s.logger.Error("Failed to queue poll results email",
				zap.Int64("poll_id", expired.Poll.ID),
				zap.String("admin", admin),
				zap.Error(err))
		}
	}
}

// resultsBody renders the per-option counts and the total.
func resultsBody(expired *models.ExpiredPoll) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Poll %q in group %q has ended.\n\nResults:\n", expired.Poll.Title, expired.GroupName)
	for _, o := range expired.Poll.Options {
		fmt.Fprintf(&b, "- %s: %d votes\n", o.Name, o.Votes)
	}
	fmt.Fprintf(&b, "\nTotal votes: %d\n", expired.Poll.Votes)
	return b.String()
}
