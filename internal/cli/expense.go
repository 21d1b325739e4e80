package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/session"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var expenseCmd = &cobra.Command{
	Use:   "expense",
	Short: "Record and manage expenses",
}

var expenseAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an expense",
	RunE:  runExpenseAdd,
}

var expenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses, newest first",
	RunE:  runExpenseList,
}

var expenseUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change an expense",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpenseUpdate,
}

var expenseDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an expense",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpenseDelete,
}

func init() {
	rootCmd.AddCommand(expenseCmd)
	expenseCmd.AddCommand(expenseAddCmd, expenseListCmd, expenseUpdateCmd, expenseDeleteCmd)

	for _, c := range []*cobra.Command{expenseAddCmd, expenseUpdateCmd} {
		c.Flags().StringP("amount", "a", "", "Amount")
		c.Flags().StringP("category", "c", "", "Category")
		c.Flags().StringP("description", "d", "", "Description")
		c.Flags().String("date", "", "Date as YYYY-MM-DD (default today)")
	}
	_ = expenseAddCmd.MarkFlagRequired("amount")
	_ = expenseAddCmd.MarkFlagRequired("category")
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func runExpenseAdd(cmd *cobra.Command, _ []string) error {
	amountStr, _ := cmd.Flags().GetString("amount")
	category, _ := cmd.Flags().GetString("category")
	description, _ := cmd.Flags().GetString("description")
	date, _ := cmd.Flags().GetString("date")

	amount, err := parseAmount(amountStr)
	if err != nil {
		return err
	}

	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		e := &model.Expense{
			UserID:      sess.UserID,
			Amount:      amount,
			Category:    category,
			Description: description,
			Date:        date,
		}
		if _, err := a.tracker.AddExpense(ctx, e); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recorded expense:\n")
		fmt.Fprintf(out, "  ID:        %s\n", e.ID)
		fmt.Fprintf(out, "  Amount:    %s%s\n", a.currency.Symbol, e.Amount.StringFixed(2))
		fmt.Fprintf(out, "  Category:  %s\n", e.Category)
		fmt.Fprintf(out, "  Date:      %s\n", e.Date)
		return nil
	})
}

func runExpenseList(cmd *cobra.Command, _ []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		expenses, err := a.tracker.Expenses(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if len(expenses) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No expenses recorded. Use 'fos expense add' to record one.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION\n")
		for _, e := range expenses {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\n",
				e.ID, e.Date, e.Category, a.currency.Symbol, e.Amount.StringFixed(2), e.Description)
		}
		return w.Flush()
	})
}

func runExpenseUpdate(cmd *cobra.Command, args []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		e, err := a.tracker.Expense(ctx, sess.UserID, args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("amount") {
			s, _ := flags.GetString("amount")
			if e.Amount, err = parseAmount(s); err != nil {
				return err
			}
		}
		if flags.Changed("category") {
			e.Category, _ = flags.GetString("category")
		}
		if flags.Changed("description") {
			e.Description, _ = flags.GetString("description")
		}
		if flags.Changed("date") {
			e.Date, _ = flags.GetString("date")
		}

		if _, err := a.tracker.UpdateExpense(ctx, e); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated expense %s\n", e.ID)
		return nil
	})
}

func runExpenseDelete(cmd *cobra.Command, args []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		if _, err := a.tracker.DeleteExpense(ctx, sess.UserID, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense %s\n", args[0])
		return nil
	})
}
