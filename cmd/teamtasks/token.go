package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fkhayef/teamtasks/internal/user"
	mw "github.com/fkhayef/teamtasks/pkg/middleware"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Mint a bearer token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	u, err := user.NewRepository(a.db).GetByID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: %s", user.ErrUserNotFound, args[0])
	}

	token, err := mw.IssueToken([]byte(a.cfg.JWTSecret), u.ID, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
