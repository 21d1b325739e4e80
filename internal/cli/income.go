package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/session"
	"github.com/spf13/cobra"
)

var incomeCmd = &cobra.Command{
	Use:   "income",
	Short: "Record and manage incomes",
}

var incomeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an income",
	RunE:  runIncomeAdd,
}

var incomeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incomes, newest first",
	RunE:  runIncomeList,
}

var incomeUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change fields of an income",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncomeUpdate,
}

var incomeDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an income",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncomeDelete,
}

func init() {
	rootCmd.AddCommand(incomeCmd)
	incomeCmd.AddCommand(incomeAddCmd, incomeListCmd, incomeUpdateCmd, incomeDeleteCmd)

	for _, c := range []*cobra.Command{incomeAddCmd, incomeUpdateCmd} {
		c.Flags().StringP("amount", "a", "", "Amount")
		c.Flags().StringP("source", "s", "Salary", "Source")
		c.Flags().StringP("description", "d", "", "Description")
		c.Flags().String("date", "", "Date as YYYY-MM-DD (default today)")
	}
	_ = incomeAddCmd.MarkFlagRequired("amount")
}

func runIncomeAdd(cmd *cobra.Command, _ []string) error {
	amountStr, _ := cmd.Flags().GetString("amount")
	source, _ := cmd.Flags().GetString("source")
	description, _ := cmd.Flags().GetString("description")
	date, _ := cmd.Flags().GetString("date")

	amount, err := parseAmount(amountStr)
	if err != nil {
		return err
	}

	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		i := &model.Income{
			UserID:      sess.UserID,
			Amount:      amount,
			Source:      source,
			Description: description,
			Date:        date,
		}
		if err := a.tracker.AddIncome(ctx, i); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded income %s: %s%s from %s on %s\n",
			i.ID, a.currency.Symbol, i.Amount.StringFixed(2), i.Source, i.Date)
		return nil
	})
}

func runIncomeList(cmd *cobra.Command, _ []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		incomes, err := a.tracker.Incomes(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if len(incomes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No incomes recorded.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tDATE\tSOURCE\tAMOUNT\tDESCRIPTION\n")
		for _, i := range incomes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\n",
				i.ID, i.Date, i.Source, a.currency.Symbol, i.Amount.StringFixed(2), i.Description)
		}
		return w.Flush()
	})
}

func runIncomeUpdate(cmd *cobra.Command, args []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		i, err := a.tracker.Income(ctx, sess.UserID, args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("amount") {
			s, _ := flags.GetString("amount")
			if i.Amount, err = parseAmount(s); err != nil {
				return err
			}
		}
		if flags.Changed("source") {
			i.Source, _ = flags.GetString("source")
		}
		if flags.Changed("description") {
			i.Description, _ = flags.GetString("description")
		}
		if flags.Changed("date") {
			i.Date, _ = flags.GetString("date")
		}

		if err := a.tracker.UpdateIncome(ctx, i); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated income %s\n", i.ID)
		return nil
	})
}

func runIncomeDelete(cmd *cobra.Command, args []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		if err := a.tracker.DeleteIncome(ctx, sess.UserID, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted income %s\n", args[0])
		return nil
	})
}
