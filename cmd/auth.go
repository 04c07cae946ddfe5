package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/config"
	"github.com/theirongolddev/planhaus/internal/store"
)

var (
	flagEmail    string
	flagPassword string
	flagName     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the PlanHaus server",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	RunE:  runLogout,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts in the local database",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account (run on the server host)",
	RunE:  runUserAdd,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, userAddCmd} {
		c.Flags().StringVarP(&flagEmail, "email", "e", "", "Account email")
		c.Flags().StringVar(&flagPassword, "password", "", "Password (prompted when omitted)")
	}
	userAddCmd.Flags().StringVar(&flagName, "name", "", "Display name")

	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, userCmd)
}

// promptCredentials asks for whatever the flags left out.
func promptCredentials(title string, confirm bool) error {
	if flagEmail != "" && flagPassword != "" {
		return nil
	}
	var again string
	fields := []huh.Field{
		huh.NewInput().Title("Email").Value(&flagEmail).Validate(func(s string) error {
			if !strings.Contains(s, "@") {
				return errors.New("enter an email address")
			}
			return nil
		}),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&flagPassword).Validate(func(s string) error {
			if len(s) < 8 {
				return errors.New("at least 8 characters")
			}
			return nil
		}),
	}
	if confirm {
		fields = append(fields, huh.NewInput().Title("Repeat password").EchoMode(huh.EchoModePassword).Value(&again).Validate(func(s string) error {
			if s != flagPassword {
				return errors.New("passwords do not match")
			}
			return nil
		}))
	}
	if err := huh.NewForm(huh.NewGroup(fields...).Title(title)).Run(); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	if err := promptCredentials("Sign in to "+cfg.Client.ServerURL, false); err != nil {
		return err
	}
	client := newClient()
	resp, err := client.Login(cmd.Context(), strings.TrimSpace(flagEmail), flagPassword)
	if err != nil {
		return err
	}
	fmt.Printf("  Signed in as %s\n", resp.User.Email)
	fmt.Printf("  Session expires %s\n", resp.ExpiresAt.Local().Format("Jan 2, 2006"))
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	client := newClient()
	creds, err := client.Tokens().Load()
	if err != nil {
		return err
	}
	if !creds.Valid() {
		fmt.Println("  Not signed in.")
		return nil
	}
	if err := client.Logout(cmd.Context()); err != nil && !errors.Is(err, apiclient.ErrLoginRequired) {
		fmt.Printf("  Server logout failed (%s); local credentials removed.\n", describeError(err))
		return nil
	}
	fmt.Printf("  Signed out %s\n", creds.Email)
	return nil
}

func runUserAdd(_ *cobra.Command, _ []string) error {
	if err := promptCredentials("New PlanHaus account", true); err != nil {
		return err
	}
	st, err := store.Open(config.DatabasePath(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	name := flagName
	if name == "" {
		name, _, _ = strings.Cut(flagEmail, "@")
	}
	u, err := st.CreateUser(context.Background(), strings.TrimSpace(flagEmail), name, flagPassword)
	if errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("an account for %s already exists", flagEmail)
	}
	if err != nil {
		return err
	}
	fmt.Printf("  Created %s (%s)\n", u.Email, u.ID)
	return nil
}
