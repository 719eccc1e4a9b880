// Command shopctl onboards shops and manages their webhook shared secrets.
//
// It reads the same ORDERSYNC_* configuration as the server.
//
//	shopctl create acme.myshopify.com --name Acme --secret s3cret
//	shopctl list
//	shopctl set-secret acme.myshopify.com --secret rotated
//	shopctl import shops.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/erp/ordersync/internal/application/shopadmin"
	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/idgen"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "shopctl",
		Short:         "Manage shops whose order webhooks are ingested",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(setSecretCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withService opens the configured database and runs fn against a shop admin service
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *shopadmin.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, _ := cmd.Flags().GetString("log-level")
	log, err := logger.New(&logger.Config{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(level)))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}

	ids, err := idgen.NewSnowflake(cfg.App.NodeID)
	if err != nil {
		return err
	}

	svc := shopadmin.NewService(persistence.NewGormShopRepository(db.DB), ids, log)
	return fn(cmd.Context(), svc)
}

func createCmd() *cobra.Command {
	var in shopadmin.ShopInput
	cmd := &cobra.Command{
		Use:   "create <domain>",
		Short: "Register a new shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Domain = args[0]
			return withService(cmd, func(ctx context.Context, svc *shopadmin.Service) error {
				shop, err := svc.Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created shop %s (id %d)\n", shop.Domain, shop.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&in.Name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&in.Secret, "secret", "s", "", "Webhook shared secret (empty disables verification)")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered shops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *shopadmin.Service) error {
				shops, err := svc.List(ctx)
				if err != nil {
					return err
				}
				return printShops(cmd.OutOrStdout(), shops)
			})
		},
	}
}

func setSecretCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "set-secret <domain>",
		Short: "Replace the webhook shared secret of a shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *shopadmin.Service) error {
				shop, err := svc.SetSecret(ctx, args[0], secret)
				if err != nil {
					return err
				}
				state := "enabled"
				if !shop.HasSecret() {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (signature verification %s)\n", shop.Domain, state)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "New shared secret (empty disables verification)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update shops from a YAML file (\"-\" reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return withService(cmd, func(ctx context.Context, svc *shopadmin.Service) error {
				res, err := svc.Import(ctx, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d, updated %d, unchanged %d\n",
					res.Created, res.Updated, res.Unchanged)
				return nil
			})
		},
	}
}

func printShops(w io.Writer, shops []*order.Shop) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tNAME\tSIGNED")
	for _, s := range shops {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", s.ID, s.Domain, s.Name, s.HasSecret())
	}
	return tw.Flush()
}
