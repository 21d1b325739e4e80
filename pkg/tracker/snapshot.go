package tracker

import (
	"github.com/financeos/fos/pkg/model"
	"github.com/shopspring/decimal"
)

// BuildSnapshot aggregates the expenses dated in month and pairs them with
// the month's budget. A nil budget means no limits are configured.
func BuildSnapshot(expenses []model.Expense, budget *model.Budget, month string) model.Snapshot {
	snap := model.Snapshot{
		TotalSpent:       decimal.Zero,
		MonthlyLimit:     decimal.Zero,
		CategorySpending: make(map[string]decimal.Decimal),
	}

	for _, e := range expenses {
		if !model.InMonth(e.Date, month) {
			continue
		}
		snap.TotalSpent = snap.TotalSpent.Add(e.Amount)
		snap.CategorySpending[e.Category] = snap.CategorySpending[e.Category].Add(e.Amount)
	}

	if budget != nil {
		snap.MonthlyLimit = budget.MonthlyLimit
		snap.CategoryLimits = append([]model.CategoryLimit(nil), budget.CategoryLimits...)
	}
	return snap
}
