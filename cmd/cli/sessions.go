package main

import (
	"fmt"

	"github.com/nimasrn/sms-verify/internal/bootstrap"
	"github.com/nimasrn/sms-verify/internal/config"
	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/spf13/cobra"
)

func buildServices() (*bootstrap.Services, *gateway.Client, error) {
	cfg := config.Get()
	db, err := bootstrap.Postgres(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	rds, err := bootstrap.Redis(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	upstream, err := bootstrap.Upstream(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("upstream client: %w", err)
	}
	svc, err := bootstrap.NewServices(cfg, db, rds, upstream, bootstrap.Options{})
	if err != nil {
		upstream.Close()
		return nil, nil, err
	}
	return svc, upstream, nil
}

func syncCatalogCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "sync-catalog",
		Short: "Pull the service list from an upstream server and upsert it into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, upstream, err := buildServices()
			if err != nil {
				return err
			}
			defer upstream.Close()

			n, err := svc.Catalog.SyncFromUpstream(cmd.Context(), model.Server(server))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d services from %s\n", n, server)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", string(model.ServerOne), "upstream server (server_1 or server_2)")
	return cmd
}

func sweepExpiredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-expired",
		Short: "Mark every overdue session as expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, upstream, err := buildServices()
			if err != nil {
				return err
			}
			defer upstream.Close()

			n, err := svc.Delivery.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d sessions\n", n)
			return nil
		},
	}
}
