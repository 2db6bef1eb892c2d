package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/ctlstudio/internal/lock"
	"github.com/mattjoyce/ctlstudio/internal/storage"
	"github.com/mattjoyce/ctlstudio/internal/stubserver"
)

func (a *app) stubServerCmd() *cobra.Command {
	var (
		listen string
		dbPath string
		token  string
		seed   string
		settle time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stub-server",
		Short: "Serve a local controller backed by SQLite",
		Long: `Run a self-contained controller that implements the API ctlstudio
talks to. Useful for demos and for developing against without a real
controller. --seed mounts a workspace root and registers a demo bundle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Stub
			if listen != "" {
				cfg.Listen = listen
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if token != "" {
				cfg.Token = token
			}

			l, err := lock.Acquire(lock.PathFor(cfg.DBPath))
			if err != nil {
				return err
			}
			defer func() { _ = l.Release() }()

			ctx := cmd.Context()
			db, err := storage.OpenSQLite(ctx, cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			logger := a.logger.With("component", "stubserver")
			store := stubserver.NewStore(db)
			if seed != "" {
				root, err := filepath.Abs(seed)
				if err != nil {
					return fmt.Errorf("resolve seed root: %w", err)
				}
				ws, err := stubserver.Seed(ctx, store, root)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				logger.Info("workspace seeded", "workspace_id", ws.ID, "root", ws.Root)
			}

			srv := stubserver.New(stubserver.Config{
				Listen: cfg.Listen,
				Token:  cfg.Token,
				Settle: settle,
			}, store, logger)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides stub.listen)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides stub.db_path)")
	cmd.Flags().StringVar(&token, "auth-token", "", "Require this bearer token (overrides stub.token)")
	cmd.Flags().StringVar(&seed, "seed", "", "Mount this workspace root and register a demo bundle")
	cmd.Flags().DurationVar(&settle, "settle", 0, "How long live runs stay running before completing")
	return cmd
}
