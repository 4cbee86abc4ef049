package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/klari-app/klari-server/internal/cache/redis"
	"github.com/klari-app/klari-server/internal/config"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/recommend"
	"github.com/klari-app/klari-server/internal/repository/postgres"
	"github.com/klari-app/klari-server/internal/seed"
	"github.com/klari-app/klari-server/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file      string
		batchSize int
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "seed --file catalog.yaml",
		Short: "Bulk-create catalog products from a YAML file",
		Long: `Reads a catalog fixture and stores its products through the catalog service,
so the same validation applies as for the REST API. Database and cache settings
come from the server environment variables.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open catalog: %w", err)
			}
			defer f.Close()

			products, err := seed.Load(f)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "catalog %s is valid: %d products\n", file, len(products))
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, products, batchSize)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	cmd.Flags().IntVar(&batchSize, "batch", seed.DefaultBatchSize, "products per bulk create")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, items []model.Product, batchSize int) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("seeding needs the postgres driver, got %q", cfg.Database.Driver)
	}
	logger := logger.NewWithFormat(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	conn, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer conn.Close()

	productStore := postgres.NewProductRepository(conn)

	var invalidator service.Invalidator
	if cfg.Cache.URL != "" {
		cache, err := redis.New(ctx, cfg.Cache.URL, cfg.Cache.TTL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize cache: %w", err)
		}
		defer cache.Close()
		invalidator = recommend.NewCachedMatcher(recommend.NewMatcher(productStore, nil, logger), cache, cfg.Cache.TTL, nil, logger)
	}

	products := service.NewProduct(productStore, nil, invalidator, cfg.Storage.PublicURL, logger)
	n, err := seed.Run(ctx, products, items, batchSize, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "stored %d products\n", n)
	return nil
}
