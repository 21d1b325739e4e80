package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/financeos/fos/pkg/session"
	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "Read the notification inbox",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest notifications",
	RunE:  runNotificationsList,
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	RunE:  runNotificationsReadAll,
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadAllCmd)
}

func runNotificationsList(cmd *cobra.Command, _ []string) error {
	return runAsUser(cmd, func(_ context.Context, _ *app, sess *session.Session) error {
		items := sess.Inbox.Items()
		out := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintln(out, "No notifications.")
			return nil
		}

		fmt.Fprintf(out, "%d unread\n\n", sess.Inbox.Unread())
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "\tTIME\tMESSAGE\n")
		for _, n := range items {
			mark := " "
			if !n.IsRead {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", mark, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Message)
		}
		return w.Flush()
	})
}

func runNotificationsReadAll(cmd *cobra.Command, _ []string) error {
	return runAsUser(cmd, func(ctx context.Context, _ *app, sess *session.Session) error {
		if err := sess.Inbox.MarkAllRead(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked read.")
		return nil
	})
}
