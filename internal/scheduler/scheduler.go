package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/financeos/fos/pkg/alerts"
	"github.com/robfig/cron/v3"
)

// Sessions lists the users with an open session.
type Sessions interface {
	Users() []string
}

// Rechecker re-evaluates a user's current-month snapshot.
type Rechecker interface {
	Recheck(ctx context.Context, userID string) []alerts.Alert
}

// Scheduler runs the background jobs of the server.
type Scheduler struct {
	cron     *cron.Cron
	sessions Sessions
	tracker  Rechecker
	logger   *slog.Logger
	ctx      context.Context
}

// New creates a scheduler whose cron expressions are read in UTC, the
// zone months are computed in.
func New(ctx context.Context, sessions Sessions, tracker Rechecker, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		sessions: sessions,
		tracker:  tracker,
		logger:   logger,
		ctx:      ctx,
	}
}

// Register adds the month rollover job on the given five-field schedule.
func (s *Scheduler) Register(rolloverCron string) error {
	if _, err := s.cron.AddFunc(rolloverCron, func() { s.RunRollover() }); err != nil {
		return fmt.Errorf("register rollover job: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunRollover re-evaluates every open session against the current month.
// Thresholds that are no longer exceeded once spending starts over are
// cleared, so they can fire again later in the month. It returns the
// number of sessions checked.
func (s *Scheduler) RunRollover() int {
	users := s.sessions.Users()
	s.logger.Info("running month rollover", "sessions", len(users))

	for _, userID := range users {
		if s.ctx.Err() != nil {
			s.logger.Warn("month rollover interrupted", "error", s.ctx.Err())
			return 0
		}
		fired := s.tracker.Recheck(s.ctx, userID)
		s.logger.Debug("session rechecked", "user_id", userID, "fired", len(fired))
	}
	return len(users)
}
