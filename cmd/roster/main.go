package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/roster/internal/catalog"
	"github.com/MikeSquared-Agency/roster/internal/config"
	"github.com/MikeSquared-Agency/roster/internal/reputation"
	"github.com/MikeSquared-Agency/roster/internal/store"
)

var cfg config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "roster",
		Short: "Roster: persona reputation and activity ledger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			setupLogging(cfg.LogLevel)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		verifyCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func openStore(ctx context.Context) (store.Store, error) {
	if cfg.Store == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	s, err := store.Open(ctx, cfg.Store, cfg.StoreDSN())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.CatalogFile != "" {
		return catalog.Load(cfg.CatalogFile)
	}
	return catalog.Default()
}

func newEngine(s store.Store, cat *catalog.Catalog, pub reputation.Publisher) *reputation.Engine {
	return reputation.New(s, reputation.Options{
		QuotaWindow: cfg.QuotaWindow,
		MaxAttempts: cfg.MaxAttempts,
		Rules:       cat.Rules(),
		Publisher:   pub,
		Logger:      slog.Default(),
	})
}
