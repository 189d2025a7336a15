package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/dynsyn/internal/bootstrap"
	"github.com/at-ishikawa/dynsyn/internal/config"
	"github.com/at-ishikawa/dynsyn/internal/database"
	"github.com/at-ishikawa/dynsyn/internal/refresh"
	"github.com/at-ishikawa/dynsyn/internal/server"
	"github.com/at-ishikawa/dynsyn/internal/statestore"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh the configured synonym sources and serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loadConfig() > %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	app := bootstrap.New(bootstrap.WithShutdownTimeout(cfg.Server.ShutdownTimeout))

	repository, closeRepository, err := openStateStore(cfg)
	if err != nil {
		return fmt.Errorf("openStateStore() > %w", err)
	}
	if closeRepository != nil {
		app.AddShutdownHook("state store", closeRepository)
	}

	manager, err := refresh.NewManagerFromConfig(cfg, nil, repository)
	if err != nil {
		return errors.Join(fmt.Errorf("refresh.NewManagerFromConfig() > %w", err), closeStateStore(closeRepository))
	}
	app.AddShutdownHook("synonym workers", func(ctx context.Context) error {
		return manager.Stop()
	})

	srv := server.New(cfg.Server.Port, server.NewHandler(manager).Routes())
	app.AddShutdownHook("admin server", srv.Shutdown)

	return app.Run(ctx, func(ctx context.Context) error {
		if err := manager.Init(ctx); err != nil {
			slog.Default().Warn("initial synonym load failed, retrying on the next tick", "error", err)
		}
		manager.Start(ctx)

		slog.Default().Info("starting admin server", "addr", srv.Addr, "sources", len(cfg.Synonyms))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("srv.ListenAndServe() > %w", err)
		}
		return nil
	})
}

// openStateStore returns the configured repository, or nil when persistence is disabled.
func openStateStore(cfg *config.Config) (statestore.Repository, func(context.Context) error, error) {
	switch cfg.State.Driver {
	case config.StateDriverYAML:
		return statestore.NewYAMLRepository(cfg.State.Directory), nil, nil
	case config.StateDriverMySQL:
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("database.Open() > %w", err)
		}
		return statestore.NewDBRepository(db), func(context.Context) error {
			return db.Close()
		}, nil
	default:
		return nil, nil, nil
	}
}

func closeStateStore(closeRepository func(context.Context) error) error {
	if closeRepository == nil {
		return nil
	}
	return closeRepository(context.Background())
}
