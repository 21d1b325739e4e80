package notify_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/financeos/fos/pkg/alerts"
	"github.com/financeos/fos/pkg/currency"
	"github.com/financeos/fos/pkg/email"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/notify"
	"github.com/financeos/fos/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// failingStore rejects every notification write.
type failingStore struct {
	storage.NotificationStore
}

func (failingStore) CreateNotification(context.Context, string, model.NotificationType, string) (*model.Notification, error) {
	return nil, errors.New("connection reset")
}

type recordingMailer struct {
	mu   sync.Mutex
	reqs []email.Request
	err  error
}

func (m *recordingMailer) Dispatch(_ context.Context, req email.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return m.err
}

func (m *recordingMailer) requests() []email.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Request(nil), m.reqs...)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []alerts.Alert
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(_ context.Context, a alerts.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, a)
	return nil
}

func TestToastQueue(t *testing.T) {
	q := notify.NewToastQueue(2)
	q.Notify("one", notify.SeverityInfo)
	q.Notify("two", notify.SeveritySuccess)
	q.Notify("three", notify.SeverityError)

	toasts := q.Drain()
	require.Len(t, toasts, 2)
	assert.Equal(t, "two", toasts[0].Message)
	assert.Equal(t, notify.SeverityError, toasts[1].Severity)
	assert.Empty(t, q.Drain())
}

func TestInbox_RefreshCountsUnread(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := db.CreateNotification(ctx, "u", model.NotificationBudgetAlert, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, db.MarkAllNotificationsRead(ctx, "u"))
	_, err := db.CreateNotification(ctx, "u", model.NotificationBudgetAlert, "fresh")
	require.NoError(t, err)

	inbox := notify.NewInbox(db, "u", quietLogger())
	require.NoError(t, inbox.Refresh(ctx))

	assert.Len(t, inbox.Items(), 4)
	assert.Equal(t, "fresh", inbox.Items()[0].Message)
	assert.Equal(t, 1, inbox.Unread())
}

func TestInbox_UnreadCountLimitedToRecentWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.CreateNotification(ctx, "u", model.NotificationBudgetAlert, "old unread")
	require.NoError(t, err)
	for i := 0; i < storage.RecentNotificationLimit; i++ {
		_, err := db.CreateNotification(ctx, "u", model.NotificationBudgetAlert, "newer")
		require.NoError(t, err)
	}

	inbox := notify.NewInbox(db, "u", quietLogger())
	require.NoError(t, inbox.Refresh(ctx))
	assert.Equal(t, storage.RecentNotificationLimit, inbox.Unread())
	assert.Len(t, inbox.Items(), storage.RecentNotificationLimit)
}

func TestInbox_AddPushesFront(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inbox := notify.NewInbox(db, "u", quietLogger())
	require.NoError(t, inbox.Refresh(ctx))

	_, err := inbox.Add(ctx, model.NotificationBudgetAlert, "first")
	require.NoError(t, err)
	n, err := inbox.Add(ctx, model.NotificationBudgetAlert, "second")
	require.NoError(t, err)

	items := inbox.Items()
	require.Len(t, items, 2)
	assert.Equal(t, n.ID, items[0].ID)
	assert.Equal(t, 2, inbox.Unread())
}

func TestInbox_MarkAllReadIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inbox := notify.NewInbox(db, "u", quietLogger())
	_, err := inbox.Add(ctx, model.NotificationBudgetAlert, "a")
	require.NoError(t, err)
	_, err = inbox.Add(ctx, model.NotificationBudgetAlert, "b")
	require.NoError(t, err)

	require.NoError(t, inbox.MarkAllRead(ctx))
	assert.Equal(t, 0, inbox.Unread())
	require.NoError(t, inbox.MarkAllRead(ctx))
	assert.Equal(t, 0, inbox.Unread())

	require.NoError(t, inbox.Refresh(ctx))
	assert.Equal(t, 0, inbox.Unread())
	for _, n := range inbox.Items() {
		assert.True(t, n.IsRead)
	}
}

func TestSink_FireAllChannels(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertProfile(ctx, &model.Profile{
		UserID: "u", Email: "asha@example.com", EmailNotifications: true,
	}))

	toasts := notify.NewToastQueue(10)
	inbox := notify.NewInbox(db, "u", quietLogger())
	mailer := &recordingMailer{}
	extra := &recordingNotifier{}

	sink := notify.NewSink(notify.SinkConfig{
		UserID:    "u",
		Toaster:   toasts,
		Inbox:     inbox,
		Profiles:  db,
		Mailer:    mailer,
		Notifiers: []alerts.Notifier{extra},
	}, quietLogger())

	sink.Fire(ctx, alerts.Alert{Key: "overall", Type: model.NotificationBudgetAlert, Message: "over"})
	sink.Wait()

	drained := toasts.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, notify.SeverityError, drained[0].Severity)
	assert.Equal(t, "over", drained[0].Message)

	assert.Equal(t, 1, inbox.Unread())
	stored, err := db.RecentNotifications(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "over", stored[0].Message)

	reqs := mailer.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "asha@example.com", reqs[0].Email)
	assert.Equal(t, "asha", reqs[0].DisplayName)
	assert.Equal(t, "over", reqs[0].Message)

	require.Len(t, extra.sent, 1)
	assert.Equal(t, "u", extra.sent[0].UserID)
}

func TestSink_EmailSkippedWhenDisabled(t *testing.T) {
	tests := []struct {
		name    string
		profile *model.Profile
	}{
		{"no profile", nil},
		{"notifications off", &model.Profile{UserID: "u", Email: "a@example.com"}},
		{"no email", &model.Profile{UserID: "u", EmailNotifications: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			ctx := context.Background()
			if tt.profile != nil {
				require.NoError(t, db.UpsertProfile(ctx, tt.profile))
			}

			mailer := &recordingMailer{}
			sink := notify.NewSink(notify.SinkConfig{UserID: "u", Profiles: db, Mailer: mailer}, quietLogger())
			sink.Fire(ctx, alerts.Alert{Key: "overall", Message: "over"})
			sink.Wait()

			assert.Empty(t, mailer.requests())
		})
	}
}

func TestSink_PersistFailureStillEmails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertProfile(ctx, &model.Profile{
		UserID: "u", Email: "a@example.com", DisplayName: "Asha", EmailNotifications: true,
	}))

	toasts := notify.NewToastQueue(10)
	inbox := notify.NewInbox(failingStore{NotificationStore: db}, "u", quietLogger())
	mailer := &recordingMailer{}

	sink := notify.NewSink(notify.SinkConfig{
		UserID: "u", Toaster: toasts, Inbox: inbox, Profiles: db, Mailer: mailer,
	}, quietLogger())

	sink.Fire(ctx, alerts.Alert{Key: "overall", Message: "over"})
	sink.Wait()

	assert.Len(t, toasts.Drain(), 1)
	assert.Equal(t, 0, inbox.Unread())
	require.Len(t, mailer.requests(), 1)
	assert.Equal(t, "Asha", mailer.requests()[0].DisplayName)
}

func TestSink_EmailFailureIsSwallowed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertProfile(ctx, &model.Profile{
		UserID: "u", Email: "a@example.com", EmailNotifications: true,
	}))

	var (
		mu     sync.Mutex
		failed []string
	)
	tasks := notify.NewDetached(time.Second, quietLogger())
	tasks.OnError(func(task string, _ error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, task)
	})

	inbox := notify.NewInbox(db, "u", quietLogger())
	sink := notify.NewSink(notify.SinkConfig{
		UserID:   "u",
		Inbox:    inbox,
		Profiles: db,
		Mailer:   &recordingMailer{err: errors.New("smtp down")},
		Tasks:    tasks,
	}, quietLogger())

	sink.Fire(ctx, alerts.Alert{Key: "overall", Type: model.NotificationBudgetAlert, Message: "over"})
	sink.Wait()

	assert.Equal(t, 1, inbox.Unread())
	assert.Equal(t, []string{"email"}, failed)
}

func TestSink_EmailDoesNotBlockFire(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertProfile(ctx, &model.Profile{
		UserID: "u", Email: "a@example.com", EmailNotifications: true,
	}))

	release := make(chan struct{})
	slow := email.DispatcherFunc(func(context.Context, email.Request) error {
		<-release
		return nil
	})

	sink := notify.NewSink(notify.SinkConfig{UserID: "u", Profiles: db, Mailer: slow}, quietLogger())

	done := make(chan struct{})
	go func() {
		sink.Fire(ctx, alerts.Alert{Key: "overall", Message: "over"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Fire blocked on email dispatch")
	}
	close(release)
	sink.Wait()
}

func TestEvaluatorWithSink_PersistFailureDoesNotRefire(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	toasts := notify.NewToastQueue(10)
	inbox := notify.NewInbox(failingStore{NotificationStore: db}, "u", quietLogger())
	sink := notify.NewSink(notify.SinkConfig{UserID: "u", Toaster: toasts, Inbox: inbox}, quietLogger())
	ev := alerts.NewEvaluator(sink, currency.Default(), quietLogger())

	snap := model.Snapshot{
		TotalSpent:       decimal.NewFromInt(1001),
		MonthlyLimit:     decimal.NewFromInt(1000),
		CategorySpending: map[string]decimal.Decimal{"Travel": decimal.NewFromInt(20)},
		CategoryLimits:   []model.CategoryLimit{{Category: "Travel", Limit: decimal.NewFromInt(10)}},
	}

	first := ev.Evaluate(ctx, snap)
	second := ev.Evaluate(ctx, snap)
	sink.Wait()

	assert.Len(t, first, 2)
	assert.Empty(t, second)
	assert.Len(t, toasts.Drain(), 2)
	assert.Equal(t, []string{"category:Travel", "overall"}, ev.Fired())
}

func TestDetached_OnErrorWhileTasksRun(t *testing.T) {
	tasks := notify.NewDetached(time.Second, quietLogger())
	var first, second atomic.Int64

	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		tasks.Go(context.Background(), fmt.Sprintf("task-%d", i), func(context.Context) error {
			<-start
			return errors.New("failed")
		})
	}

	tasks.OnError(func(string, error) { first.Add(1) })
	close(start)
	tasks.OnError(func(string, error) { second.Add(1) })
	tasks.Wait()

	assert.Equal(t, int64(20), first.Load()+second.Load())
}
