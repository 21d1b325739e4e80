package tracker

import (
	"context"
	"fmt"

	"github.com/financeos/fos/pkg/model"
	"github.com/shopspring/decimal"
)

// TrendMonths is the number of months in a summary's income/expense trend.
const TrendMonths = 3

// CategoryBreakdown is the spend of one category in a summary month.
type CategoryBreakdown struct {
	Category string          `json:"category"`
	Spent    decimal.Decimal `json:"spent"`
	Limit    decimal.Decimal `json:"limit"`
	UsedPct  *int64          `json:"used_pct,omitempty"`
}

// TrendPoint holds one month's income and expense totals.
type TrendPoint struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Summary is the dashboard view of one month.
type Summary struct {
	Month        string              `json:"month"`
	TotalIncome  decimal.Decimal     `json:"total_income"`
	TotalExpense decimal.Decimal     `json:"total_expense"`
	NetBalance   decimal.Decimal     `json:"net_balance"`
	SavingsRate  int64               `json:"savings_rate"`
	HealthScore  int64               `json:"health_score"`
	MonthlyLimit decimal.Decimal     `json:"monthly_limit"`
	BudgetUsed   *int64              `json:"budget_used,omitempty"`
	Categories   []CategoryBreakdown `json:"categories"`
	Trend        []TrendPoint        `json:"trend"`
}

// Summary builds the dashboard summary for month, or the current month
// when month is empty.
func (t *Tracker) Summary(ctx context.Context, userID, month string) (*Summary, error) {
	if month == "" {
		month = t.CurrentMonth()
	}
	months, err := model.PreviousMonths(month, TrendMonths)
	if err != nil {
		return nil, err
	}

	incomes, err := t.storage.ListIncomes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	expenses, err := t.storage.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	budget, err := t.Budget(ctx, userID, month)
	if err != nil {
		return nil, err
	}

	return Summarize(month, months, incomes, expenses, budget, t.categories), nil
}

// Summarize computes a summary from already loaded rows.
func Summarize(month string, trendMonths []string, incomes []model.Income, expenses []model.Expense, budget *model.Budget, categories *model.CategorySet) *Summary {
	if categories == nil {
		categories = model.DefaultCategorySet()
	}
	s := &Summary{
		Month:        month,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		MonthlyLimit: decimal.Zero,
	}

	s.Trend = make([]TrendPoint, len(trendMonths))
	trend := make(map[string]*TrendPoint, len(trendMonths))
	for k, m := range trendMonths {
		s.Trend[k] = TrendPoint{Month: m, Income: decimal.Zero, Expense: decimal.Zero}
		trend[m] = &s.Trend[k]
	}

	for _, i := range incomes {
		if model.InMonth(i.Date, month) {
			s.TotalIncome = s.TotalIncome.Add(i.Amount)
		}
		if p, ok := trend[monthKey(i.Date)]; ok {
			p.Income = p.Income.Add(i.Amount)
		}
	}

	snap := BuildSnapshot(expenses, budget, month)
	s.TotalExpense = snap.TotalSpent
	for _, e := range expenses {
		if p, ok := trend[monthKey(e.Date)]; ok {
			p.Expense = p.Expense.Add(e.Amount)
		}
	}

	s.NetBalance = s.TotalIncome.Sub(s.TotalExpense)
	if s.TotalIncome.IsPositive() {
		s.SavingsRate = percent(s.NetBalance, s.TotalIncome)
	}
	s.HealthScore = healthScore(s.SavingsRate, s.NetBalance)

	if budget != nil {
		s.MonthlyLimit = budget.MonthlyLimit
		if budget.MonthlyLimit.IsPositive() {
			used := percent(s.TotalExpense, budget.MonthlyLimit)
			s.BudgetUsed = &used
		}
	}

	for _, name := range categories.Names() {
		spent, hasSpend := snap.CategorySpending[name]
		var limit decimal.Decimal
		if budget != nil {
			limit = budget.LimitFor(name)
		}
		if !hasSpend && !limit.IsPositive() {
			continue
		}
		cb := CategoryBreakdown{Category: name, Spent: spent, Limit: limit}
		if limit.IsPositive() {
			used := percent(spent, limit)
			cb.UsedPct = &used
		}
		s.Categories = append(s.Categories, cb)
	}

	return s
}

// healthScore weighs the savings rate and rewards a positive balance,
// clamped to 0..100.
func healthScore(savingsRate int64, net decimal.Decimal) int64 {
	score := decimal.NewFromInt(savingsRate).Mul(decimal.NewFromFloat(1.5))
	if net.IsPositive() {
		score = score.Add(decimal.NewFromInt(25))
	}
	v := roundHalfUp(score)
	return max(0, min(100, v))
}

// percent returns part/whole*100 rounded half up.
func percent(part, whole decimal.Decimal) int64 {
	return roundHalfUp(part.Div(whole).Mul(decimal.NewFromInt(100)))
}

// roundHalfUp rounds halves toward positive infinity.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Add(decimal.NewFromFloat(0.5)).Floor().IntPart()
}

func monthKey(date string) string {
	if len(date) < len(model.MonthLayout) {
		return ""
	}
	return date[:len(model.MonthLayout)]
}
