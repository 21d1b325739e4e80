package session_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/financeos/fos/pkg/currency"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/session"
	"github.com/financeos/fos/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*session.Manager, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return session.NewManager(session.Config{Store: store}, logger), store
}

func over() model.Snapshot {
	return model.Snapshot{TotalSpent: decimal.NewFromInt(11), MonthlyLimit: decimal.NewFromInt(10)}
}

func TestManager_OpenLoadsInbox(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	_, err := store.CreateNotification(ctx, "u", model.NotificationBudgetAlert, "earlier")
	require.NoError(t, err)

	s, err := m.Open(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Inbox.Unread())

	again, err := m.Open(ctx, "u")
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestManager_OpenRejectsEmptyUser(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Open(context.Background(), "")
	assert.Error(t, err)
}

func TestManager_FireReachesInboxAndToasts(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Open(ctx, "u")
	require.NoError(t, err)

	fired := s.Evaluator.Evaluate(ctx, over())
	require.Len(t, fired, 1)
	m.Wait()

	assert.Equal(t, 1, s.Inbox.Unread())
	assert.Len(t, s.Toasts.Drain(), 1)

	stored, err := store.RecentNotifications(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, fired[0].Message, stored[0].Message)
}

func TestManager_CloseResetsFiredSet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Open(ctx, "u")
	require.NoError(t, err)
	require.Len(t, s.Evaluator.Evaluate(ctx, over()), 1)
	require.Empty(t, s.Evaluator.Evaluate(ctx, over()))

	assert.True(t, m.Close("u"))
	assert.False(t, m.Close("u"))
	_, ok := m.Get("u")
	assert.False(t, ok)

	reopened, err := m.Open(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, reopened.Evaluator.Evaluate(ctx, over()), 1)
	assert.Equal(t, 2, reopened.Inbox.Unread())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.Open(ctx, "a")
	require.NoError(t, err)
	b, err := m.Open(ctx, "b")
	require.NoError(t, err)

	require.Len(t, a.Evaluator.Evaluate(ctx, over()), 1)
	assert.Len(t, b.Evaluator.Evaluate(ctx, over()), 1)
	assert.Equal(t, []string{"a", "b"}, m.Users())

	ev, ok := m.Evaluator("a")
	require.True(t, ok)
	assert.NotNil(t, ev)
	_, ok = m.Evaluator("nobody")
	assert.False(t, ok)
}

func TestManager_OpenUsesProfileCurrency(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertProfile(ctx, &model.Profile{UserID: "u", Currency: "USD"}))
	require.NoError(t, store.UpsertProfile(ctx, &model.Profile{UserID: "legacy", Currency: "XYZ"}))

	s, err := m.Open(ctx, "u")
	require.NoError(t, err)
	fired := s.Evaluator.Evaluate(ctx, over())
	require.Len(t, fired, 1)
	assert.Equal(t, "⚠️ Monthly budget exceeded! Spent $11 of $10 limit.", fired[0].Message)

	legacy, err := m.Open(ctx, "legacy")
	require.NoError(t, err)
	fired = legacy.Evaluator.Evaluate(ctx, over())
	require.Len(t, fired, 1)
	assert.Contains(t, fired[0].Message, "₹11")

	anon, err := m.Open(ctx, "anon")
	require.NoError(t, err)
	fired = anon.Evaluator.Evaluate(ctx, over())
	require.Len(t, fired, 1)
	assert.Contains(t, fired[0].Message, "₹11")
}

func TestManager_SetCurrency(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	eur, err := currency.Lookup("EUR")
	require.NoError(t, err)
	assert.False(t, m.SetCurrency("u", eur))

	s, err := m.Open(ctx, "u")
	require.NoError(t, err)
	assert.True(t, m.SetCurrency("u", eur))

	fired := s.Evaluator.Evaluate(ctx, over())
	require.Len(t, fired, 1)
	assert.Equal(t, "⚠️ Monthly budget exceeded! Spent €11 of €10 limit.", fired[0].Message)
}
