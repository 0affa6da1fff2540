package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/datachat/internal/devserver"
)

func newDevserverCmd(opts *rootOptions) *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local stand-in for the analysis service",
		Long: "Serves /upload and /query with the analysis service's response shapes, backed by SQLite " +
			"and a keyword planner. Meant for demos and integration tests, not real analysis.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Dev.Addr = addr
			}
			if dbPath != "" {
				cfg.Dev.DBPath = dbPath
			}

			logger := stderrLogger(cmd.ErrOrStderr(), cfg)
			srv, err := devserver.NewServer(cfg.Dev.Addr, cfg.Dev.DBPath, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8000)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default from config, :memory:)")
	return cmd
}
