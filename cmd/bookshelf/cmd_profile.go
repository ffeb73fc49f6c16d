package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bookshelf/pkg/models"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the signed-in user's profile",
	RunE: withApp(func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
		if _, err := a.requireUser(); err != nil {
			return err
		}
		printProfile(cmd.OutOrStdout(), a.session.State().Profile)
		return nil
	}),
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change username, full name or avatar URL",
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		var fields models.ProfileUpdate
		flags := cmd.Flags()
		if flags.Changed("username") {
			v, _ := flags.GetString("username")
			fields.Username = &v
		}
		if flags.Changed("full-name") {
			v, _ := flags.GetString("full-name")
			fields.FullName = &v
		}
		if flags.Changed("avatar-url") {
			v, _ := flags.GetString("avatar-url")
			fields.AvatarURL = &v
		}
		if fields.Empty() {
			return errors.New("nothing to update; pass --username, --full-name or --avatar-url")
		}

		if err := a.session.UpdateProfile(ctx, fields); err != nil {
			return err
		}
		printProfile(cmd.OutOrStdout(), a.session.State().Profile)
		return nil
	}),
}

func printProfile(w io.Writer, p *models.Profile) {
	if p == nil {
		fmt.Fprintln(w, "no profile")
		return
	}
	fmt.Fprintf(w, "id:         %s\n", p.ID)
	fmt.Fprintf(w, "username:   %s\n", deref(p.Username))
	fmt.Fprintf(w, "full name:  %s\n", deref(p.FullName))
	fmt.Fprintf(w, "avatar url: %s\n", deref(p.AvatarURL))
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func init() {
	f := profileUpdateCmd.Flags()
	f.String("username", "", "new username")
	f.String("full-name", "", "new full name")
	f.String("avatar-url", "", "new avatar URL")
	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd)
}
