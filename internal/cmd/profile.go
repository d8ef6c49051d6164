package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/errors"
	"github.com/felixgeelhaar/ignite/internal/session"
	"github.com/felixgeelhaar/ignite/internal/tui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the signed-in user's profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored profile",
	RunE:  withApp(runProfileShow),
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change the display name and optionally the password",
	Long: `Change the display name. Passing --new-password also changes the
password and requires the current one in --old-password.

Examples:
  ignite profile update --name "Ana Maria"
  ignite profile update --name Ana --old-password secret1 --new-password secret2`,
	RunE: withApp(runProfileUpdate),
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileUpdateCmd)

	profileUpdateCmd.Flags().String("name", "", "display name (defaults to the current one)")
	profileUpdateCmd.Flags().String("old-password", "", "current password")
	profileUpdateCmd.Flags().String("new-password", "", "new password")

	rootCmd.AddCommand(profileCmd)
}

type profileResult struct {
	auth.UserProfile `yaml:",inline"`
}

func (r profileResult) Text() string {
	return fmt.Sprintf("%s <%s>\nid: %s", r.Name, r.Email, r.ID)
}

func runProfileShow(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	profile, ok := a.session.Profile()
	if !ok {
		return errors.NewNotSignedInError()
	}
	return a.out.Format(profileResult{profile})
}

func runProfileUpdate(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}

	current, _ := a.session.Profile()
	name, _ := cmd.Flags().GetString("name")
	oldPassword, _ := cmd.Flags().GetString("old-password")
	newPassword, _ := cmd.Flags().GetString("new-password")

	if name == "" {
		name = current.Name
	}
	if newPassword != "" && oldPassword == "" && tui.ShouldPrompt() {
		p, err := tui.PromptForPassword("Current password", tui.Required("current password"))
		if err != nil {
			return err
		}
		oldPassword = p
	}

	updated, err := a.session.UpdateAccount(ctx, session.AccountUpdate{
		Name:        name,
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	return a.out.Format(profileResult{updated})
}
