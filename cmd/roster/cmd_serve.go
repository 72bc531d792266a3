package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/roster/internal/actionlog"
	"github.com/MikeSquared-Agency/roster/internal/api"
	"github.com/MikeSquared-Agency/roster/internal/hermes"
	"github.com/MikeSquared-Agency/roster/internal/processor"
	"github.com/MikeSquared-Agency/roster/internal/reputation"
	"github.com/MikeSquared-Agency/roster/internal/roster"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and NATS intake",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			slog.Info("roster starting", "port", cfg.Port, "store", cfg.Store)

			db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			slog.Info("store ready", "driver", cfg.Store)

			cat, err := loadCatalog()
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			seeded, err := cat.Seed(ctx, db, nil, slog.Default())
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			slog.Info("catalog seeded", "created", seeded, "templates", len(cat.Templates))

			// NATS is optional; without it events are only accepted over HTTP.
			var pub reputation.Publisher
			var hermesClient *hermes.Client
			if cfg.NatsURL != "" {
				busOpts := hermes.DefaultOptions(cfg.NatsURL, cfg.NatsToken)
				busOpts.Queue = cfg.NatsQueue
				hermesClient, err = hermes.Connect(busOpts, slog.Default())
				if err != nil {
					return fmt.Errorf("connect to NATS: %w", err)
				}
				defer hermesClient.Close()
				pub = hermesClient
				slog.Info("NATS connected", "url", cfg.NatsURL, "queue", busOpts.Queue)
			} else {
				slog.Warn("NATS_URL not set, running without event bus")
			}

			engine := newEngine(db, cat, pub)
			svc := roster.New(db, engine, roster.Options{
				Publisher:         pub,
				Logger:            slog.Default(),
				DefaultDailyQuota: cfg.DefaultDailyQuota,
			})

			actions := actionlog.New(db, actionlog.Options{Publisher: pub, Logger: slog.Default()})

			if hermesClient != nil {
				proc := processor.New(engine, slog.Default()).WithActions(actions)
				if err := proc.Register(hermesClient); err != nil {
					return fmt.Errorf("subscribe: %w", err)
				}
			}

			srv := api.NewServer(cfg.Port, cfg.APIToken, svc, engine, actions, slog.Default())
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			if hermesClient != nil {
				if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
					"port":      cfg.Port,
					"store":     cfg.Store,
				}); err != nil {
					slog.Warn("failed to publish registration", "error", err)
				}
			}

			slog.Info("roster ready", "port", cfg.Port)

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("HTTP server: %w", err)
				}
			}

			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("HTTP shutdown", "error", err)
			}
			slog.Info("roster stopped")
			return nil
		},
	}
}
