package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/financeos/fos/pkg/currency"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/session"
	"github.com/financeos/fos/pkg/storage"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change the user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile",
	RunE:  runProfileShow,
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change profile fields",
	RunE:  runProfileSet,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd, profileSetCmd)

	profileSetCmd.Flags().String("email", "", "Email address for alerts")
	profileSetCmd.Flags().String("name", "", "Display name")
	profileSetCmd.Flags().String("currency", "", "Display currency (INR, USD, EUR, GBP, JPY, AUD, CAD)")
	profileSetCmd.Flags().Bool("email-notifications", false, "Email budget alerts")
}

func loadProfile(ctx context.Context, a *app, userID string) (*model.Profile, error) {
	p, err := a.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &model.Profile{UserID: userID, Currency: currency.Default().Code}, nil
	}
	return p, err
}

func runProfileShow(cmd *cobra.Command, _ []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		p, err := loadProfile(ctx, a, sess.UserID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User:                 %s\n", p.UserID)
		fmt.Fprintf(out, "Email:                %s\n", p.Email)
		fmt.Fprintf(out, "Display name:         %s\n", p.DisplayName)
		fmt.Fprintf(out, "Currency:             %s\n", p.Currency)
		fmt.Fprintf(out, "Email notifications:  %t\n", p.EmailNotifications)
		return nil
	})
}

func runProfileSet(cmd *cobra.Command, _ []string) error {
	return runAsUser(cmd, func(ctx context.Context, a *app, sess *session.Session) error {
		p, err := loadProfile(ctx, a, sess.UserID)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("email") {
			s, _ := flags.GetString("email")
			p.Email = strings.TrimSpace(s)
		}
		if flags.Changed("name") {
			p.DisplayName, _ = flags.GetString("name")
		}
		var switched *currency.Currency
		if flags.Changed("currency") {
			code, _ := flags.GetString("currency")
			c, err := currency.Lookup(code)
			if err != nil {
				return err
			}
			p.Currency = c.Code
			switched = &c
		}
		if flags.Changed("email-notifications") {
			p.EmailNotifications, _ = flags.GetBool("email-notifications")
		}

		if err := a.store.UpsertProfile(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		if switched != nil {
			a.sessions.SetCurrency(sess.UserID, *switched)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Profile saved.")
		return nil
	})
}
