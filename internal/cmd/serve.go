package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/internal/observability"
	"github.com/3leaps/nimbusfs/internal/server"
	"github.com/3leaps/nimbusfs/internal/server/handlers"
	"github.com/3leaps/nimbusfs/pkg/driver"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the selected disk over read-only HTTP",
	Long: `Start an HTTP server exposing read-only operations on one disk.

Endpoints:
  GET /health, /health/live, /health/ready, /health/startup
  GET /version
  GET /v1/list?prefix=&recursive=&include=&exclude=
  GET /v1/meta/{path}
  GET /v1/objects/{path}
  GET /v1/url/{path}?expires=15m`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default server.port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig.Server
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return exitError(foundry.ExitInvalidArgument, "Invalid port", fmt.Errorf("port %d out of range", cfg.Port))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, a, err := openDisk(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	_, diskCfg, _ := appConfig.Storage.Disk(name)
	handlers.InitHealthManager(versionInfo.Version)
	handlers.GetHealthManager().RegisterChecker("config", configHealthChecker{cfg: diskCfg})
	handlers.GetHealthManager().RegisterChecker("storage", storageHealthChecker{adapter: a})

	log := observability.CLILogger
	srv := server.New(cfg.Host, cfg.Port,
		server.WithLogger(log),
		server.WithVersion(currentVersion()),
		server.WithDisk(name, a),
		server.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(foundry.ExitSignalInt, "Graceful shutdown failed", err)
	}
	if err := <-errCh; err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}

// configHealthChecker re-validates the served disk configuration.
type configHealthChecker struct {
	cfg driver.Config
}

func (c configHealthChecker) CheckHealth(context.Context) error {
	return c.cfg.Validate()
}

// storageHealthChecker lists the root of the disk. A failing listing
// means the provider is unreachable or the credentials are rejected.
type storageHealthChecker struct {
	adapter provider.Adapter
}

func (c storageHealthChecker) CheckHealth(ctx context.Context) error {
	if c.adapter == nil {
		return errors.New("storage adapter not initialized")
	}
	if _, err := c.adapter.ListDirectory(ctx, "", false); err != nil {
		return fmt.Errorf("list root: %w", err)
	}
	return nil
}
