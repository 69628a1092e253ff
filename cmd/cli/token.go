package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/sms-verify/internal/auth"
	"github.com/nimasrn/sms-verify/internal/config"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		userID string
		admin  bool
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg := config.Get()
			if ttl <= 0 {
				ttl = cfg.JwtTTL
			}
			token, err := auth.NewIssuer(cfg.JwtSecret, ttl).Issue(userID, admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the token")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to JWT_TTL")
	return cmd
}
