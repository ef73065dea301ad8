package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/wanderlust/internal/auth"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserAddCmd(), newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add <username> <email>",
		Short: "Create a user account",
		Long:  "Create a user account. The password comes from --password or the WL_USER_PASSWORD environment variable.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("WL_USER_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("password is required (--password or WL_USER_PASSWORD)")
			}
			return runUserAdd(cmd, args[0], args[1], password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "account password")

	return cmd
}

func runUserAdd(cmd *cobra.Command, username, email, password string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(database)

	u, err := auth.NewUserStore(database).Register(context.Background(), auth.SignupInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("adding user: %w", err)
	}

	if isJSON() {
		return printJSON(cmd.OutOrStdout(), u)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "User #%d (%s) created.\n", u.ID, u.Username)
	return nil
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(database)

			users, err := auth.NewUserStore(database).List(context.Background())
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), users)
			}
			return printUserTable(cmd.OutOrStdout(), users)
		},
	}
}
