package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/session"
	"github.com/financeos/fos/pkg/tracker"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage monthly budgets",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or replace a month's budget",
	Example: `  fos budget set --monthly 50000 --limit "Food & Dining=8000" --limit Travel=5000`,
	RunE: runBudgetSet,
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show spending against a month's budget",
	RunE:  runBudgetStatus,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetSetCmd)
	budgetCmd.AddCommand(budgetStatusCmd)

	budgetSetCmd.Flags().StringP("month", "m", "", "Month as YYYY-MM (default current month)")
	budgetSetCmd.Flags().String("monthly", "0", "Overall monthly limit, 0 for none")
	budgetSetCmd.Flags().StringArrayP("limit", "l", nil, "Category limit as CATEGORY=AMOUNT, repeatable")

	budgetStatusCmd.Flags().StringP("month", "m", "", "Month as YYYY-MM (default current month)")
}

// parseCategoryLimits keeps the order the limits were given in.
func parseCategoryLimits(args []string) ([]model.CategoryLimit, error) {
	limits := make([]model.CategoryLimit, 0, len(args))
	for _, arg := range args {
		category, amount, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid limit %q: want CATEGORY=AMOUNT", arg)
		}
		limit, err := parseAmount(strings.TrimSpace(amount))
		if err != nil {
			return nil, err
		}
		limits = append(limits, model.CategoryLimit{Category: strings.TrimSpace(category), Limit: limit})
	}
	return limits, nil
}

func runBudgetSet(cmd *cobra.Command, _ []string) error {
	month, _ := cmd.Flags().GetString("month")
	monthlyStr, _ := cmd.Flags().GetString("monthly")
	limitSpecs, _ := cmd.Flags().GetStringArray("limit")

	monthly, err := parseAmount(monthlyStr)
	if err != nil {
		return err
	}
	limits, err := parseCategoryLimits(limitSpecs)
	if err != nil {
		return err
	}

	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		b := &model.Budget{
			UserID:         sess.UserID,
			Month:          month,
			MonthlyLimit:   monthly,
			CategoryLimits: limits,
		}
		if _, err := a.tracker.SaveBudget(ctx, b); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Budget set for %s:\n", b.Month)
		fmt.Fprintf(out, "  Monthly limit:  %s\n", formatLimit(a, b.MonthlyLimit))
		for _, cl := range b.CategoryLimits {
			fmt.Fprintf(out, "  %-15s %s\n", cl.Category+":", formatLimit(a, cl.Limit))
		}
		return nil
	})
}

func formatLimit(a *app, limit decimal.Decimal) string {
	if !limit.IsPositive() {
		return "none"
	}
	return a.currency.Format(limit)
}

func runBudgetStatus(cmd *cobra.Command, _ []string) error {
	month, _ := cmd.Flags().GetString("month")

	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		b, err := a.tracker.Budget(ctx, sess.UserID, month)
		if err != nil {
			return err
		}
		expenses, err := a.tracker.Expenses(ctx, sess.UserID)
		if err != nil {
			return err
		}
		snap := tracker.BuildSnapshot(expenses, b, b.Month)

		if !b.MonthlyLimit.IsPositive() && len(b.CategoryLimits) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No budget for %s. Use 'fos budget set' to create one.\n", b.Month)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "BUDGET\tLIMIT\tSPENT\tREMAINING\tUSAGE\n")
		writeBudgetRow(w, a, "Monthly", b.MonthlyLimit, snap.TotalSpent)
		for _, cl := range b.CategoryLimits {
			writeBudgetRow(w, a, cl.Category, cl.Limit, snap.CategorySpending[cl.Category])
		}
		return w.Flush()
	})
}

func writeBudgetRow(w *tabwriter.Writer, a *app, name string, limit, spent decimal.Decimal) {
	if !limit.IsPositive() {
		fmt.Fprintf(w, "%s\tnone\t%s\t-\t-\n", name, a.currency.Format(spent))
		return
	}

	remaining := decimal.Max(limit.Sub(spent), decimal.Zero)
	pct := spent.Div(limit).Mul(decimal.NewFromInt(100))

	status := ""
	if spent.GreaterThan(limit) {
		status = " [EXCEEDED]"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%%%s\n",
		name, a.currency.Format(limit), a.currency.Format(spent),
		a.currency.Format(remaining), pct.StringFixed(1), status)
}
