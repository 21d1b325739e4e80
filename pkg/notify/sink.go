package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/financeos/fos/pkg/alerts"
	"github.com/financeos/fos/pkg/email"
	"github.com/financeos/fos/pkg/storage"
)

// Sink fans a fired alert out to every channel of one user: a toast, the
// persisted inbox, email when the profile asks for it, and any extra
// notifiers. Only the inbox write is awaited. Email and notifiers run as
// detached tasks. No failure is returned to the evaluator.
type Sink struct {
	userID    string
	toaster   Toaster
	inbox     *Inbox
	profiles  storage.ProfileStore
	mailer    email.Dispatcher
	notifiers []alerts.Notifier
	tasks     *Detached
	logger    *slog.Logger
}

var _ alerts.Sink = (*Sink)(nil)

// SinkConfig wires the channels of a Sink. Nil channels are skipped.
type SinkConfig struct {
	UserID    string
	Toaster   Toaster
	Inbox     *Inbox
	Profiles  storage.ProfileStore
	Mailer    email.Dispatcher
	Notifiers []alerts.Notifier
	Tasks     *Detached
}

// NewSink creates a Sink for one user.
func NewSink(cfg SinkConfig, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	tasks := cfg.Tasks
	if tasks == nil {
		tasks = NewDetached(0, logger)
	}
	return &Sink{
		userID:    cfg.UserID,
		toaster:   cfg.Toaster,
		inbox:     cfg.Inbox,
		profiles:  cfg.Profiles,
		mailer:    cfg.Mailer,
		notifiers: cfg.Notifiers,
		tasks:     tasks,
		logger:    logger.With("user_id", cfg.UserID),
	}
}

// Fire delivers a to every channel in order. A failing channel is logged
// and the next one is still attempted.
func (s *Sink) Fire(ctx context.Context, a alerts.Alert) {
	a.UserID = s.userID

	if s.toaster != nil {
		s.toaster.Notify(a.Message, SeverityError)
	}

	if s.inbox != nil {
		if _, err := s.inbox.Add(ctx, a.Type, a.Message); err != nil {
			s.logger.Error("failed to persist budget alert", "key", a.Key, "error", err)
		}
	}

	s.sendEmail(ctx, a)

	for _, n := range s.notifiers {
		s.tasks.Go(ctx, n.Name(), func(ctx context.Context) error {
			return n.Send(ctx, a)
		})
	}
}

// Wait blocks until detached deliveries started by Fire have finished.
func (s *Sink) Wait() {
	s.tasks.Wait()
}

func (s *Sink) sendEmail(ctx context.Context, a alerts.Alert) {
	if s.mailer == nil || s.profiles == nil {
		return
	}

	profile, err := s.profiles.GetProfile(ctx, s.userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to load profile for email alert", "key", a.Key, "error", err)
		}
		return
	}
	if !profile.EmailNotifications || profile.Email == "" {
		return
	}

	req := email.Request{
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Message:     a.Message,
	}
	req.DisplayName = req.Name()

	s.tasks.Go(ctx, "email", func(ctx context.Context) error {
		return s.mailer.Dispatch(ctx, req)
	})
}
