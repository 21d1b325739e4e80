// Package session keeps the per-user state of a logged-in user: the alert
// evaluator with its fired set, the notification inbox and the toast queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/financeos/fos/pkg/alerts"
	"github.com/financeos/fos/pkg/currency"
	"github.com/financeos/fos/pkg/email"
	"github.com/financeos/fos/pkg/notify"
	"github.com/financeos/fos/pkg/storage"
	"github.com/financeos/fos/pkg/tracker"
)

// Session is one user's live state between login and logout.
type Session struct {
	UserID    string
	Evaluator *alerts.Evaluator
	Inbox     *notify.Inbox
	Toasts    *notify.ToastQueue
}

// Config holds what every session shares.
type Config struct {
	Store     storage.Storage
	Currency  currency.Currency
	Mailer    email.Dispatcher
	Notifiers []alerts.Notifier
	Tasks     *notify.Detached
	MaxToasts int
}

// Manager owns the open sessions, one per user.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      Config
	logger   *slog.Logger
}

var _ tracker.EvaluatorSource = (*Manager)(nil)

// NewManager creates a manager with no open sessions.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency.Code == "" {
		cfg.Currency = currency.Default()
	}
	if cfg.Tasks == nil {
		cfg.Tasks = notify.NewDetached(0, logger)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		logger:   logger,
	}
}

// Open returns the user's session, creating it with an empty fired set
// and a freshly loaded inbox if none is open.
func (m *Manager) Open(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("open session: empty user id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}

	logger := m.logger.With("user_id", userID)
	inbox := notify.NewInbox(m.cfg.Store, userID, logger)
	if err := inbox.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	toasts := notify.NewToastQueue(m.cfg.MaxToasts)
	sink := notify.NewSink(notify.SinkConfig{
		UserID:    userID,
		Toaster:   toasts,
		Inbox:     inbox,
		Profiles:  m.cfg.Store,
		Mailer:    m.cfg.Mailer,
		Notifiers: m.cfg.Notifiers,
		Tasks:     m.cfg.Tasks,
	}, logger)

	s := &Session{
		UserID:    userID,
		Evaluator: alerts.NewEvaluator(sink, m.profileCurrency(ctx, userID, logger), logger),
		Inbox:     inbox,
		Toasts:    toasts,
	}
	m.sessions[userID] = s

	logger.Info("session opened", "unread", inbox.Unread())
	return s, nil
}

// profileCurrency returns the currency saved in the user's profile, or the
// configured default when there is no usable one.
func (m *Manager) profileCurrency(ctx context.Context, userID string, logger *slog.Logger) currency.Currency {
	if m.cfg.Store == nil {
		return m.cfg.Currency
	}
	p, err := m.cfg.Store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return m.cfg.Currency
	case err != nil:
		logger.Warn("load profile currency", "error", err)
		return m.cfg.Currency
	}
	if p.Currency == "" {
		return m.cfg.Currency
	}
	c, err := currency.Lookup(p.Currency)
	if err != nil {
		logger.Warn("profile currency unsupported, using default", "currency", p.Currency)
		return m.cfg.Currency
	}
	return c
}

// SetCurrency switches the currency of the user's open session, if any.
// It reports whether a session was open.
func (m *Manager) SetCurrency(userID string, cur currency.Currency) bool {
	s, ok := m.Get(userID)
	if !ok {
		return false
	}
	s.Evaluator.SetCurrency(cur)
	return true
}

// Get returns the user's open session.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Evaluator returns the evaluator of the user's open session.
func (m *Manager) Evaluator(userID string) (tracker.Evaluator, bool) {
	s, ok := m.Get(userID)
	if !ok {
		return nil, false
	}
	return s.Evaluator, true
}

// Close discards the user's session. The next Open starts from an empty
// fired set.
func (m *Manager) Close(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[userID]; !ok {
		return false
	}
	delete(m.sessions, userID)
	m.logger.Info("session closed", "user_id", userID)
	return true
}

// Users returns the ids of users with an open session, sorted.
func (m *Manager) Users() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until detached deliveries of every session have finished.
func (m *Manager) Wait() {
	m.cfg.Tasks.Wait()
}
