package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fkhayef/teamtasks/internal/activity"
	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/user"
)

var (
	userName  string
	userEmail string
	userAdmin bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users from the command line",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register an active user, e.g. the first admin",
	Long: `Register an active user directly in the database.

Examples:
  teamtasks user create --name "Dana" --email dana@example.com --admin`,
	RunE: runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	userCreateCmd.Flags().BoolVar(&userAdmin, "admin", false, "grant the admin role")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	role := session.RoleUser
	if userAdmin {
		role = session.RoleAdmin
	}

	activityService := activity.NewService(activity.NewRepository(a.db), a.logger)
	users := user.NewService(user.NewRepository(a.db), activityService)
	u, err := users.Register(cmd.Context(), &user.CreateUserRequest{
		Name:  userName,
		Email: userEmail,
		Role:  role,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.ID, u.Email, u.Role)
	return nil
}
