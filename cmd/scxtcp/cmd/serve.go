package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scx-projects/scx-tcp/internal/config"
	"github.com/scx-projects/scx-tcp/internal/echo"
	"github.com/scx-projects/scx-tcp/internal/tcpserver"
)

var (
	listenAddr string
	backlog    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the echo server",
	Long: "Bind the listen address and serve every connection with the line echo handler\n" +
		"until SIGINT or SIGTERM. Connections still open at shutdown are left to finish.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address host:port (overrides config)")
	serveCmd.Flags().IntVar(&backlog, "backlog", 0, "listen queue depth (overrides config)")
	addTLSFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("scxtcp serve: %w", err)
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = listenAddr
	}
	if cmd.Flags().Changed("backlog") {
		cfg.Server.Backlog = backlog
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting scxtcp", "version", buildVersion)

	srv, err := newServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("scxtcp serve: %w", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := srv.Start(cfg.Listen); err != nil {
		return fmt.Errorf("scxtcp serve: %w", err)
	}
	addr, err := srv.LocalAddr()
	if err != nil {
		srv.Stop()
		return fmt.Errorf("scxtcp serve: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)

	<-ctx.Done()
	logger.Info("shutting down", "reason", ctx.Err())

	srv.Stop()
	logger.Info("scxtcp stopped")
	return nil
}

// newServer builds a server wired with the echo handler and, if configured,
// TLS. Handler failures are logged here, at the application layer.
func newServer(cfg *config.Config, logger *slog.Logger) (*tcpserver.Server, error) {
	srv := tcpserver.New(cfg.Server, logger)

	if err := srv.OnConnect(echo.NewHandler(logger)); err != nil {
		return nil, err
	}
	if err := srv.OnUncaught(logUncaught(logger)); err != nil {
		return nil, err
	}

	tlsCtx, err := cfg.TLS.Build(logger)
	if err != nil {
		return nil, err
	}
	if tlsCtx != nil {
		if err := srv.UseTLS(tlsCtx); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

// logUncaught reports handler failures through logger. Panics are logged at
// ERROR with the stack of the panicking goroutine.
func logUncaught(logger *slog.Logger) tcpserver.UncaughtHandler {
	return func(failure any, stack []byte) {
		if stack != nil {
			logger.Error("connection handler panicked", "panic", failure, "stack", string(stack))
			return
		}
		logger.Warn("connection failed", "error", failure)
	}
}
