// Package cmd implements the scxtcp CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scx-projects/scx-tcp/internal/config"
	"github.com/scx-projects/scx-tcp/internal/tlsctx"
)

var (
	cfgFile  string
	logLevel string
)

// TLS flags shared by serve and ping.
var (
	tlsMode        string
	keystorePath   string
	passphraseFile string
	certFile       string
	keyFile        string
	dataDir        string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("scxtcp version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "scxtcp",
	Short: "scxtcp is a minimal TCP acceptor",
	Long: "scxtcp binds a TCP endpoint and hands every accepted connection to a handler,\n" +
		"optionally after a TLS handshake. The bundled handler answers \"ping\" with \"pong\"\n" +
		"and echoes every other line.",
	// No Run function, prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("scxtcp version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// addTLSFlags registers the TLS material flags on c.
func addTLSFlags(c *cobra.Command) {
	c.Flags().StringVar(&tlsMode, "tls-mode", "", "TLS material: none, default, trust_any, keystore, files (overrides config)")
	c.Flags().StringVar(&keystorePath, "keystore", "", "PKCS#12 keystore path (mode keystore)")
	c.Flags().StringVar(&passphraseFile, "passphrase-file", "", "file holding the keystore passphrase (mode keystore)")
	c.Flags().StringVar(&certFile, "cert", "", "PEM certificate file (mode files)")
	c.Flags().StringVar(&keyFile, "key", "", "PEM private key file (mode files)")
	c.Flags().StringVar(&dataDir, "data-dir", "", "directory for a persistent self-signed certificate (mode trust_any)")
}

// loadConfig reads the config file and applies the flags that were set on c.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	applyTLSFlags(c, &cfg.TLS)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyTLSFlags(c *cobra.Command, t *tlsctx.Config) {
	flags := c.Flags()
	if flags.Changed("tls-mode") {
		t.Mode = tlsMode
	}
	if flags.Changed("keystore") {
		t.KeystorePath = keystorePath
	}
	if flags.Changed("passphrase-file") {
		t.PassphraseFile = passphraseFile
	}
	if flags.Changed("cert") {
		t.CertFile = certFile
	}
	if flags.Changed("key") {
		t.KeyFile = keyFile
	}
	if flags.Changed("data-dir") {
		t.DataDir = dataDir
	}
}

func setupLogger(level string) *slog.Logger {
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
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
