package main

import (
	"fmt"
	"os"

	"github.com/nimasrn/sms-verify/internal/config"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	envPath  string
	logLevel string
)

func main() {
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:     "smsv",
		Short:   "Operator tooling for the sms verification service",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envPath == "" {
				if _, err := os.Stat(".env"); err == nil {
					envPath = ".env"
				}
			}
			if logLevel != "" {
				if err := logger.SetLevel(logLevel); err != nil {
					return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
				}
			}
			return config.Load(envPath)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncCatalogCmd())
	rootCmd.AddCommand(sweepExpiredCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
