package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scx-projects/scx-tcp/internal/config"
	"github.com/scx-projects/scx-tcp/internal/tcpclient"
)

var (
	pingMessage string
	pingTimeout time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping <host:port>",
	Short: "Send one line to a server and print the reply",
	Long: "Connect to host:port, optionally upgrade to TLS as client, send one line\n" +
		"(default \"ping\") and print the first line of the reply.",
	Args: cobra.ExactArgs(1),
	RunE: runPing,
}

func init() {
	pingCmd.Flags().StringVar(&pingMessage, "message", "ping", "line to send")
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "dial and reply timeout")
	addTLSFlags(pingCmd)
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("scxtcp ping: %w", err)
	}
	if cmd.Flags().Changed("timeout") || cfg.Client.DialTimeout == 0 {
		cfg.Client.DialTimeout = pingTimeout
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reply, err := ping(ctx, cfg, args[0], pingMessage, pingTimeout)
	if err != nil {
		return fmt.Errorf("scxtcp ping: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

// ping sends message to address and returns the first reply line.
func ping(ctx context.Context, cfg *config.Config, address, message string, timeout time.Duration) (string, error) {
	logger := setupLogger(cfg.LogLevel)

	conn, err := tcpclient.New(cfg.Client).Connect(ctx, address)
	if err != nil {
		return "", err
	}
	defer func() { conn.Close() }()

	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return "", err
		}
	}

	tlsCtx, err := cfg.TLS.Build(logger)
	if err != nil {
		return "", err
	}
	if tlsCtx != nil {
		tc, err := tlsCtx.UpgradeToTLS(ctx, conn)
		if err != nil {
			return "", err
		}
		conn = tc
	}

	if _, err := fmt.Fprintf(conn, "%s\n", message); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
