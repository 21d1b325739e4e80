package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/financeos/fos/pkg/session"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the monthly financial summary",
	Long: `Show income, expenses, savings rate, health score, budget usage and
per-category spending for a month, with the income and expense trend of
the months before it.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("month", "m", "", "Month as YYYY-MM (default current month)")
	reportCmd.Flags().Bool("json", false, "Print the summary as JSON")
}

func runReport(cmd *cobra.Command, _ []string) error {
	month, _ := cmd.Flags().GetString("month")
	asJSON, _ := cmd.Flags().GetBool("json")

	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		summary, err := a.tracker.Summary(ctx, sess.UserID, month)
		if err != nil {
			return fmt.Errorf("generate report: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		cur := a.currency
		fmt.Fprintf(out, "=== FinanceOS Report (%s) ===\n\n", summary.Month)
		fmt.Fprintf(out, "Total Income:   %s\n", cur.Format(summary.TotalIncome))
		fmt.Fprintf(out, "Total Expense:  %s\n", cur.Format(summary.TotalExpense))
		fmt.Fprintf(out, "Net Balance:    %s\n", cur.Format(summary.NetBalance))
		fmt.Fprintf(out, "Savings Rate:   %d%%\n", summary.SavingsRate)
		fmt.Fprintf(out, "Health Score:   %d/100\n", summary.HealthScore)
		if summary.BudgetUsed != nil {
			fmt.Fprintf(out, "Budget Used:    %d%% of %s\n", *summary.BudgetUsed, cur.Format(summary.MonthlyLimit))
		}

		if len(summary.Categories) > 0 {
			fmt.Fprintf(out, "\nBy Category:\n")
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  CATEGORY\tSPENT\tLIMIT\tUSED\n")
			for _, c := range summary.Categories {
				limit, used := "-", "-"
				if c.UsedPct != nil {
					limit = cur.Format(c.Limit)
					used = fmt.Sprintf("%d%%", *c.UsedPct)
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", c.Category, cur.Format(c.Spent), limit, used)
			}
			w.Flush()
		}

		fmt.Fprintf(out, "\nTrend:\n")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  MONTH\tINCOME\tEXPENSE\n")
		for _, p := range summary.Trend {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", p.Month, cur.Format(p.Income), cur.Format(p.Expense))
		}
		return w.Flush()
	})
}
