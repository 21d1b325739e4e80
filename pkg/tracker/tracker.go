package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/financeos/fos/pkg/alerts"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/storage"
)

// Evaluator checks a spend snapshot against its limits.
type Evaluator interface {
	// EvaluateFunc loads the snapshot and evaluates it as one pass.
	EvaluateFunc(ctx context.Context, load func(context.Context) (model.Snapshot, error)) ([]alerts.Alert, error)
}

// EvaluatorSource finds the evaluator of a user's open session.
type EvaluatorSource interface {
	Evaluator(userID string) (Evaluator, bool)
}

// Tracker is the main entry point for recording expenses, incomes and
// budgets. Every change to spending or limits recomputes the current
// month's snapshot and runs it through the user's evaluator.
type Tracker struct {
	storage    storage.Storage
	categories *model.CategorySet
	evaluators EvaluatorSource
	logger     *slog.Logger
	now        func() time.Time
}

// NewTracker creates a tracker. evaluators may be nil, in which case
// changes are stored without being evaluated.
func NewTracker(store storage.Storage, categories *model.CategorySet, evaluators EvaluatorSource, logger *slog.Logger) *Tracker {
	if categories == nil {
		categories = model.DefaultCategorySet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		storage:    store,
		categories: categories,
		evaluators: evaluators,
		logger:     logger,
		now:        time.Now,
	}
}

// Categories returns the expense categories the tracker accepts.
func (t *Tracker) Categories() *model.CategorySet {
	return t.categories
}

// CurrentMonth returns the month used for snapshots.
func (t *Tracker) CurrentMonth() string {
	return model.MonthOf(t.now())
}

// AddExpense validates and stores an expense, then evaluates alerts.
func (t *Tracker) AddExpense(ctx context.Context, e *model.Expense) ([]alerts.Alert, error) {
	if e.Date == "" {
		e.Date = t.now().UTC().Format(model.DateLayout)
	}
	if err := e.Validate(t.categories); err != nil {
		return nil, fmt.Errorf("invalid expense: %w", err)
	}
	if err := t.storage.CreateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("store expense: %w", err)
	}

	t.logger.Info("expense recorded",
		"user_id", e.UserID,
		"category", e.Category,
		"amount", e.Amount.String(),
		"date", e.Date,
	)
	return t.Recheck(ctx, e.UserID), nil
}

// UpdateExpense replaces an existing expense, then evaluates alerts.
func (t *Tracker) UpdateExpense(ctx context.Context, e *model.Expense) ([]alerts.Alert, error) {
	if err := e.Validate(t.categories); err != nil {
		return nil, fmt.Errorf("invalid expense: %w", err)
	}
	if err := t.storage.UpdateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}

	t.logger.Info("expense updated", "user_id", e.UserID, "id", e.ID)
	return t.Recheck(ctx, e.UserID), nil
}

// DeleteExpense removes an expense, then evaluates alerts.
func (t *Tracker) DeleteExpense(ctx context.Context, userID, id string) ([]alerts.Alert, error) {
	if err := t.storage.DeleteExpense(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("delete expense: %w", err)
	}

	t.logger.Info("expense deleted", "user_id", userID, "id", id)
	return t.Recheck(ctx, userID), nil
}

// Expense returns one of the user's expenses.
func (t *Tracker) Expense(ctx context.Context, userID, id string) (*model.Expense, error) {
	return t.storage.GetExpense(ctx, userID, id)
}

// Expenses returns the user's expenses, newest first.
func (t *Tracker) Expenses(ctx context.Context, userID string) ([]model.Expense, error) {
	return t.storage.ListExpenses(ctx, userID)
}

// AddIncome validates and stores an income.
func (t *Tracker) AddIncome(ctx context.Context, i *model.Income) error {
	if i.Date == "" {
		i.Date = t.now().UTC().Format(model.DateLayout)
	}
	if err := i.Validate(); err != nil {
		return fmt.Errorf("invalid income: %w", err)
	}
	if err := t.storage.CreateIncome(ctx, i); err != nil {
		return fmt.Errorf("store income: %w", err)
	}

	t.logger.Info("income recorded", "user_id", i.UserID, "source", i.Source, "amount", i.Amount.String())
	return nil
}

// UpdateIncome replaces an existing income.
func (t *Tracker) UpdateIncome(ctx context.Context, i *model.Income) error {
	if err := i.Validate(); err != nil {
		return fmt.Errorf("invalid income: %w", err)
	}
	if err := t.storage.UpdateIncome(ctx, i); err != nil {
		return fmt.Errorf("update income: %w", err)
	}

	t.logger.Info("income updated", "user_id", i.UserID, "id", i.ID)
	return nil
}

// Income returns one of the user's incomes.
func (t *Tracker) Income(ctx context.Context, userID, id string) (*model.Income, error) {
	return t.storage.GetIncome(ctx, userID, id)
}

// DeleteIncome removes an income.
func (t *Tracker) DeleteIncome(ctx context.Context, userID, id string) error {
	if err := t.storage.DeleteIncome(ctx, userID, id); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return nil
}

// Incomes returns the user's incomes, newest first.
func (t *Tracker) Incomes(ctx context.Context, userID string) ([]model.Income, error) {
	return t.storage.ListIncomes(ctx, userID)
}

// Snapshot computes the current month's spend snapshot for the user.
func (t *Tracker) Snapshot(ctx context.Context, userID string) (model.Snapshot, error) {
	month := t.CurrentMonth()

	expenses, err := t.storage.ListExpenses(ctx, userID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("list expenses: %w", err)
	}

	budget, err := t.storage.GetBudget(ctx, userID, month)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return model.Snapshot{}, fmt.Errorf("get budget: %w", err)
	}

	return BuildSnapshot(expenses, budget, month), nil
}

// Recheck recomputes the user's snapshot and evaluates it. Failures are
// logged: a stored change is never undone because alerting failed.
func (t *Tracker) Recheck(ctx context.Context, userID string) []alerts.Alert {
	if t.evaluators == nil {
		return nil
	}
	ev, ok := t.evaluators.Evaluator(userID)
	if !ok {
		t.logger.Debug("no open session, skipping budget evaluation", "user_id", userID)
		return nil
	}

	fired, err := ev.EvaluateFunc(ctx, func(ctx context.Context) (model.Snapshot, error) {
		return t.Snapshot(ctx, userID)
	})
	if err != nil {
		t.logger.Error("budget evaluation failed", "user_id", userID, "error", err)
		return nil
	}
	return fired
}
