package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/home"
	"github.com/fableforge/fableforge/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Fableforge server",
	Long: `Start the Fableforge HTTP server.

The server connects to the document store configured under "store" in the
config file, applies the collection schemas, and exposes the generation API.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes document store status)

Examples:
  fableforge serve                    # Start on the configured port
  fableforge serve --port 3000        # Start on custom port
  fableforge serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		// Flags override config; empty flags fall back to configured values.
		cfg := cm.Get()
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = cfg.Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
