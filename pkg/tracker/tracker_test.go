package tracker_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/financeos/fos/pkg/alerts"
	"github.com/financeos/fos/pkg/currency"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/storage"
	"github.com/financeos/fos/pkg/tracker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	fired []alerts.Alert
}

func (s *recordingSink) Fire(_ context.Context, a alerts.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = append(s.fired, a)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fired)
}

type singleUser struct {
	userID string
	ev     *alerts.Evaluator
}

func (s singleUser) Evaluator(userID string) (tracker.Evaluator, bool) {
	if userID != s.userID {
		return nil, false
	}
	return s.ev, true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTracker(t *testing.T) (*tracker.Tracker, *recordingSink, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sink := &recordingSink{}
	ev := alerts.NewEvaluator(sink, currency.Default(), testLogger())
	tr := tracker.NewTracker(store, nil, singleUser{userID: "u", ev: ev}, testLogger())
	return tr, sink, store
}

func today() string {
	return time.Now().UTC().Format(model.DateLayout)
}

func expense(amount int64, category string) *model.Expense {
	return &model.Expense{UserID: "u", Amount: decimal.NewFromInt(amount), Category: category, Date: today()}
}

func TestTracker_AddExpense_FiresOnceWhenOverBudget(t *testing.T) {
	tr, sink, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.SaveBudget(ctx, &model.Budget{UserID: "u", MonthlyLimit: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	fired, err := tr.AddExpense(ctx, expense(600, "Travel"))
	require.NoError(t, err)
	assert.Empty(t, fired)

	fired, err = tr.AddExpense(ctx, expense(500, "Travel"))
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "⚠️ Monthly budget exceeded! Spent ₹1,100 of ₹1,000 limit.", fired[0].Message)

	fired, err = tr.AddExpense(ctx, expense(10, "Other"))
	require.NoError(t, err)
	assert.Empty(t, fired)
	assert.Equal(t, 1, sink.count())
}

func TestTracker_DeleteExpense_RecoveryRearms(t *testing.T) {
	tr, sink, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.SaveBudget(ctx, &model.Budget{UserID: "u", MonthlyLimit: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	big := expense(1500, "Shopping")
	_, err = tr.AddExpense(ctx, big)
	require.NoError(t, err)

	_, err = tr.DeleteExpense(ctx, "u", big.ID)
	require.NoError(t, err)

	fired, err := tr.AddExpense(ctx, expense(1500, "Shopping"))
	require.NoError(t, err)
	assert.Len(t, fired, 1)
	assert.Equal(t, 2, sink.count())
}

func TestTracker_SaveBudget_EvaluatesCategoryLimits(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.AddExpense(ctx, expense(800, "Food & Dining"))
	require.NoError(t, err)

	fired, err := tr.SaveBudget(ctx, &model.Budget{
		UserID: "u",
		CategoryLimits: []model.CategoryLimit{
			{Category: "Food & Dining", Limit: decimal.NewFromInt(500)},
			{Category: "Other", Limit: decimal.Zero},
		},
	})
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "category:Food & Dining", fired[0].Key)
}

func TestTracker_UpdateExpense(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.SaveBudget(ctx, &model.Budget{UserID: "u", MonthlyLimit: decimal.NewFromInt(100)})
	require.NoError(t, err)

	e := expense(50, "Travel")
	_, err = tr.AddExpense(ctx, e)
	require.NoError(t, err)

	e.Amount = decimal.NewFromInt(150)
	fired, err := tr.UpdateExpense(ctx, e)
	require.NoError(t, err)
	assert.Len(t, fired, 1)
}

func TestTracker_OldExpensesNotCounted(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.SaveBudget(ctx, &model.Budget{UserID: "u", MonthlyLimit: decimal.NewFromInt(100)})
	require.NoError(t, err)

	old := expense(5000, "Travel")
	old.Date = "2001-01-15"
	fired, err := tr.AddExpense(ctx, old)
	require.NoError(t, err)
	assert.Empty(t, fired)

	snap, err := tr.Snapshot(ctx, "u")
	require.NoError(t, err)
	assert.True(t, snap.TotalSpent.IsZero())
}

func TestTracker_AddExpense_Invalid(t *testing.T) {
	tr, _, store := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.AddExpense(ctx, expense(0, "Travel"))
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = tr.AddExpense(ctx, expense(10, "Yachts"))
	assert.ErrorIs(t, err, model.ErrUnknownCategory)

	list, err := store.ListExpenses(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTracker_AddExpense_DefaultsDateToToday(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	e := &model.Expense{UserID: "u", Amount: decimal.NewFromInt(10), Category: "Other"}
	_, err := tr.AddExpense(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, today(), e.Date)
}

func TestTracker_NoSessionSkipsEvaluation(t *testing.T) {
	tr, sink, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.SaveBudget(ctx, &model.Budget{UserID: "other", MonthlyLimit: decimal.NewFromInt(1)})
	require.NoError(t, err)

	e := expense(100, "Other")
	e.UserID = "other"
	fired, err := tr.AddExpense(ctx, e)
	require.NoError(t, err)
	assert.Empty(t, fired)
	assert.Equal(t, 0, sink.count())
}

func TestTracker_Budget_DefaultsToEmpty(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	b, err := tr.Budget(context.Background(), "u", "")
	require.NoError(t, err)
	assert.Equal(t, tr.CurrentMonth(), b.Month)
	assert.True(t, b.MonthlyLimit.IsZero())
	assert.Empty(t, b.CategoryLimits)

	_, err = tr.Budget(context.Background(), "u", "bad")
	assert.ErrorIs(t, err, model.ErrInvalidMonth)
}

func TestTracker_SaveBudget_Invalid(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	_, err := tr.SaveBudget(context.Background(), &model.Budget{UserID: "u", MonthlyLimit: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, model.ErrInvalidLimit)
}

func TestTracker_Incomes(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	i := &model.Income{UserID: "u", Amount: decimal.NewFromInt(50000), Source: "Salary"}
	require.NoError(t, tr.AddIncome(ctx, i))

	list, err := tr.Incomes(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list, 1)

	i.Amount = decimal.NewFromInt(60000)
	require.NoError(t, tr.UpdateIncome(ctx, i))
	got, err := tr.Income(ctx, "u", i.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60000).Equal(got.Amount))

	i.Amount = decimal.Zero
	assert.ErrorIs(t, tr.UpdateIncome(ctx, i), model.ErrInvalidAmount)

	require.NoError(t, tr.DeleteIncome(ctx, "u", i.ID))
	assert.ErrorIs(t, tr.DeleteIncome(ctx, "u", i.ID), storage.ErrNotFound)
}

func TestTracker_IOUs(t *testing.T) {
	tr, sink, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.SaveBudget(ctx, &model.Budget{UserID: "u", MonthlyLimit: decimal.NewFromInt(100)})
	require.NoError(t, err)

	o := &model.IOU{UserID: "u", PersonName: "Ravi", Amount: decimal.NewFromInt(5000), Type: model.IOUIOwe}
	require.NoError(t, tr.AddIOU(ctx, o))
	assert.False(t, o.IsSettled)
	assert.Equal(t, 0, sink.count(), "IOUs do not count toward the budget")

	settled, err := tr.SettleIOU(ctx, "u", o.ID, true)
	require.NoError(t, err)
	assert.True(t, settled.IsSettled)
	assert.NotNil(t, settled.SettledAt)

	reopened, err := tr.SettleIOU(ctx, "u", o.ID, false)
	require.NoError(t, err)
	assert.False(t, reopened.IsSettled)
	assert.Nil(t, reopened.SettledAt)

	reopened.PersonName = "Ravi K"
	require.NoError(t, tr.UpdateIOU(ctx, reopened))
	got, err := tr.IOU(ctx, "u", o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", got.PersonName)

	list, err := tr.IOUs(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, tr.DeleteIOU(ctx, "u", o.ID))
	_, err = tr.SettleIOU(ctx, "u", o.ID, true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTracker_AddIOU_Invalid(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	err := tr.AddIOU(ctx, &model.IOU{UserID: "u", Amount: decimal.NewFromInt(10), Type: model.IOUOwesMe})
	assert.ErrorIs(t, err, model.ErrPersonRequired)

	err = tr.AddIOU(ctx, &model.IOU{UserID: "u", PersonName: "Sam", Amount: decimal.NewFromInt(10), Type: "gift"})
	assert.ErrorIs(t, err, model.ErrInvalidIOUType)
}

// stallingStore holds the first armed ListExpenses after it has read its
// rows, until release is closed.
type stallingStore struct {
	storage.Storage

	armed   atomic.Bool
	stalled chan struct{}
	release chan struct{}
	deleted chan struct{}
}

func (s *stallingStore) ListExpenses(ctx context.Context, userID string) ([]model.Expense, error) {
	list, err := s.Storage.ListExpenses(ctx, userID)
	if s.armed.CompareAndSwap(true, false) {
		close(s.stalled)
		<-s.release
	}
	return list, err
}

func (s *stallingStore) DeleteExpense(ctx context.Context, userID, id string) error {
	err := s.Storage.DeleteExpense(ctx, userID, id)
	close(s.deleted)
	return err
}

func TestTracker_StaleSnapshotDoesNotSuppressNextCrossing(t *testing.T) {
	base, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { base.Close() })

	store := &stallingStore{
		Storage: base,
		stalled: make(chan struct{}),
		release: make(chan struct{}),
		deleted: make(chan struct{}),
	}
	sink := &recordingSink{}
	ev := alerts.NewEvaluator(sink, currency.Default(), testLogger())
	tr := tracker.NewTracker(store, nil, singleUser{userID: "u", ev: ev}, testLogger())
	ctx := context.Background()

	_, err = tr.SaveBudget(ctx, &model.Budget{UserID: "u", MonthlyLimit: decimal.NewFromInt(100)})
	require.NoError(t, err)

	store.armed.Store(true)
	first := expense(150, "Travel")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := tr.AddExpense(ctx, first)
		assert.NoError(t, err)
	}()
	<-store.stalled

	go func() {
		defer wg.Done()
		_, err := tr.DeleteExpense(ctx, "u", first.ID)
		assert.NoError(t, err)
	}()
	<-store.deleted

	close(store.release)
	wg.Wait()

	assert.Empty(t, ev.Fired(), "spend is back under the limit")

	fired, err := tr.AddExpense(ctx, expense(150, "Travel"))
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, alerts.OverallKey, fired[0].Key)
}
