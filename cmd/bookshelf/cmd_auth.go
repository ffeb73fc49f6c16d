package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign up and sign out",
}

var (
	authEmail    string
	authPassword string
	authUsername string
)

var authSignInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password",
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		if authEmail == "" || authPassword == "" {
			return errors.New("--email and --password are required")
		}
		if err := a.session.SignIn(ctx, authEmail, authPassword); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ signed in as", authEmail)
		return nil
	}),
}

var authSignUpCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		if authEmail == "" || authPassword == "" {
			return errors.New("--email and --password are required")
		}
		if err := a.session.SignUp(ctx, authEmail, authPassword, authUsername); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ account created for", authEmail)
		return nil
	}),
}

var authSignOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and revoke the stored session",
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		if err := a.session.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "👋 signed out")
		return nil
	}),
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is signed in",
	RunE: withApp(func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
		st := a.session.State()
		out := cmd.OutOrStdout()
		if !st.Authenticated() {
			fmt.Fprintln(out, "not signed in")
			return nil
		}
		fmt.Fprintf(out, "signed in as %s (%s)\n", st.User.Email, st.User.ID)
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{authSignInCmd, authSignUpCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "email address")
		c.Flags().StringVar(&authPassword, "password", "", "password")
	}
	authSignUpCmd.Flags().StringVar(&authUsername, "username", "", "public username")
	authCmd.AddCommand(authSignInCmd, authSignUpCmd, authSignOutCmd, authStatusCmd)
}
