package main

import (
	"context"
	"fmt"
	"os"

	"el-store/config"
	"el-store/media"
	"el-store/service"
	"el-store/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "el-store",
	Short: "el-store - electronics storefront backend",
	Long: `el-store serves the storefront REST API: catalog, cart, orders and the
admin panel, plus uploaded product images and the built web client.

Without a database DSN the server keeps everything in memory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore connects to Postgres and migrates it, or falls back to the
// in-memory store when no DSN is configured.
func openStore(ctx context.Context) (store.Store, error) {
	if cfg.Database.DSN == "" {
		logger.Warn("no database configured, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN, store.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("DB connection failed: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("failed running migrations: %w", err)
	}
	logger.Info("database migrations executed")
	return pg, nil
}

func newService(st store.Store) *service.Service {
	return service.NewService(st, media.NewDiskStore(cfg.Uploads.Dir), logger, service.Options{
		SessionTTL:     cfg.SessionTTL(),
		MaxUploadSize:  cfg.Uploads.MaxFileSize,
		MaxUploadFiles: cfg.Uploads.MaxFiles,
	})
}
