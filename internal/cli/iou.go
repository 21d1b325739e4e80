package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/session"
	"github.com/spf13/cobra"
)

var iouCmd = &cobra.Command{
	Use:   "iou",
	Short: "Track money lent and borrowed",
}

var iouAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an IOU",
	RunE:  runIOUAdd,
}

var iouListCmd = &cobra.Command{
	Use:   "list",
	Short: "List IOUs, open ones first",
	RunE:  runIOUList,
}

var iouUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change fields of an IOU",
	Args:  cobra.ExactArgs(1),
	RunE:  runIOUUpdate,
}

var iouSettleCmd = &cobra.Command{
	Use:   "settle ID",
	Short: "Mark an IOU settled",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runIOUSettle(cmd, args[0], true) },
}

var iouReopenCmd = &cobra.Command{
	Use:     "reopen ID",
	Aliases: []string{"unsettle"},
	Short:   "Mark a settled IOU open again",
	Args:    cobra.ExactArgs(1),
	RunE:    func(cmd *cobra.Command, args []string) error { return runIOUSettle(cmd, args[0], false) },
}

var iouDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an IOU",
	Args:  cobra.ExactArgs(1),
	RunE:  runIOUDelete,
}

func init() {
	rootCmd.AddCommand(iouCmd)
	iouCmd.AddCommand(iouAddCmd, iouListCmd, iouUpdateCmd, iouSettleCmd, iouReopenCmd, iouDeleteCmd)

	for _, c := range []*cobra.Command{iouAddCmd, iouUpdateCmd} {
		c.Flags().StringP("person", "p", "", "Person the money is owed to or by")
		c.Flags().StringP("amount", "a", "", "Amount")
		c.Flags().StringP("type", "t", string(model.IOUOwesMe), "owes_me (you lent) or i_owe (you borrowed)")
		c.Flags().StringP("description", "d", "", "Description")
	}
	_ = iouAddCmd.MarkFlagRequired("person")
	_ = iouAddCmd.MarkFlagRequired("amount")
}

// parseIOUType accepts the stored names and their dashed forms.
func parseIOUType(s string) (model.IOUType, error) {
	t := model.IOUType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch t {
	case model.IOUOwesMe, model.IOUIOwe:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrInvalidIOUType, s)
}

func runIOUAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	person, _ := flags.GetString("person")
	amountStr, _ := flags.GetString("amount")
	typeStr, _ := flags.GetString("type")
	description, _ := flags.GetString("description")

	amount, err := parseAmount(amountStr)
	if err != nil {
		return err
	}
	typ, err := parseIOUType(typeStr)
	if err != nil {
		return err
	}

	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		o := &model.IOU{
			UserID:      sess.UserID,
			PersonName:  strings.TrimSpace(person),
			Amount:      amount,
			Type:        typ,
			Description: description,
		}
		if err := a.tracker.AddIOU(ctx, o); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded IOU %s: %s\n", o.ID, describeIOU(a, o))
		return nil
	})
}

func describeIOU(a *app, o *model.IOU) string {
	amount := a.currency.Format(o.Amount)
	if o.Type == model.IOUIOwe {
		return fmt.Sprintf("you owe %s %s", o.PersonName, amount)
	}
	return fmt.Sprintf("%s owes you %s", o.PersonName, amount)
}

func runIOUList(cmd *cobra.Command, _ []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		ious, err := a.tracker.IOUs(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if len(ious) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No IOUs recorded. Use 'fos iou add' to record one.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tPERSON\tTYPE\tAMOUNT\tSTATUS\tDESCRIPTION\n")
		for _, o := range ious {
			status := "open"
			if o.IsSettled {
				status = "settled"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\t%s\n",
				o.ID, o.PersonName, o.Type, a.currency.Symbol, o.Amount.StringFixed(2), status, o.Description)
		}
		return w.Flush()
	})
}

func runIOUUpdate(cmd *cobra.Command, args []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		o, err := a.tracker.IOU(ctx, sess.UserID, args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("person") {
			s, _ := flags.GetString("person")
			o.PersonName = strings.TrimSpace(s)
		}
		if flags.Changed("amount") {
			s, _ := flags.GetString("amount")
			if o.Amount, err = parseAmount(s); err != nil {
				return err
			}
		}
		if flags.Changed("type") {
			s, _ := flags.GetString("type")
			if o.Type, err = parseIOUType(s); err != nil {
				return err
			}
		}
		if flags.Changed("description") {
			o.Description, _ = flags.GetString("description")
		}

		if err := a.tracker.UpdateIOU(ctx, o); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated IOU %s\n", o.ID)
		return nil
	})
}

func runIOUSettle(cmd *cobra.Command, id string, settled bool) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		o, err := a.tracker.SettleIOU(ctx, sess.UserID, id, settled)
		if err != nil {
			return err
		}
		if settled {
			fmt.Fprintf(cmd.OutOrStdout(), "Settled IOU %s: %s\n", o.ID, describeIOU(a, o))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reopened IOU %s: %s\n", o.ID, describeIOU(a, o))
		return nil
	})
}

func runIOUDelete(cmd *cobra.Command, args []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		if err := a.tracker.DeleteIOU(ctx, sess.UserID, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted IOU %s\n", args[0])
		return nil
	})
}
