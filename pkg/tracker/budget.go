package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/financeos/fos/pkg/alerts"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/storage"
	"github.com/shopspring/decimal"
)

// Budget returns the user's budget for month, or the current month when
// month is empty. A month without a stored budget yields an empty budget
// with no limits.
func (t *Tracker) Budget(ctx context.Context, userID, month string) (*model.Budget, error) {
	if month == "" {
		month = t.CurrentMonth()
	}
	if _, _, err := model.MonthBounds(month); err != nil {
		return nil, err
	}

	b, err := t.storage.GetBudget(ctx, userID, month)
	if errors.Is(err, storage.ErrNotFound) {
		return &model.Budget{
			UserID:         userID,
			Month:          month,
			MonthlyLimit:   decimal.Zero,
			CategoryLimits: []model.CategoryLimit{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// SaveBudget validates and stores the budget, then evaluates alerts.
// An empty month means the current month.
func (t *Tracker) SaveBudget(ctx context.Context, b *model.Budget) ([]alerts.Alert, error) {
	if b.Month == "" {
		b.Month = t.CurrentMonth()
	}
	if err := b.Validate(t.categories); err != nil {
		return nil, fmt.Errorf("invalid budget: %w", err)
	}
	if err := t.storage.UpsertBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("store budget: %w", err)
	}

	t.logger.Info("budget saved",
		"user_id", b.UserID,
		"month", b.Month,
		"monthly_limit", b.MonthlyLimit.String(),
		"category_limits", len(b.CategoryLimits),
	)
	return t.Recheck(ctx, b.UserID), nil
}
