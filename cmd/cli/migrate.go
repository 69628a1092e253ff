package main

import (
	"github.com/nimasrn/sms-verify/internal/bootstrap"
	"github.com/nimasrn/sms-verify/internal/config"
	"github.com/nimasrn/sms-verify/pkg/pg"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|redo]",
		Short: "Run database migrations",
		Long: `Run goose migrations against the write database.

Examples:
  smsv migrate
  smsv migrate status --dir ./migrations
  smsv migrate down --env .env.local`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "redo"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			return pg.Migrate(cmd.Context(), bootstrap.WriteConfig(config.Get()), dir, command)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "./migrations", "directory holding the migration files")
	return cmd
}
