package tlsctx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// TLS material modes.
const (
	ModeNone     = "none"
	ModeDefault  = "default"
	ModeTrustAny = "trust_any"
	ModeKeystore = "keystore"
	ModeFiles    = "files"
)

// Config selects and locates TLS material.
type Config struct {
	// Mode is one of "none", "default", "trust_any", "keystore", "files".
	// Default: "none"
	Mode string `yaml:"mode"`

	// KeystorePath is the PKCS#12 keystore. Required for mode "keystore".
	KeystorePath string `yaml:"keystore_path"`

	// Passphrase unlocks the keystore. PassphraseFile takes precedence.
	Passphrase string `yaml:"passphrase"`

	// PassphraseFile is a file whose trimmed content is the keystore passphrase.
	PassphraseFile string `yaml:"passphrase_file"`

	// CertFile and KeyFile are PEM files. Required for mode "files".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// DataDir, when set in mode "trust_any", stores a persistent self-signed
	// certificate instead of generating a new one on every start.
	DataDir string `yaml:"data_dir"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeNone
	}
}

// Validate checks that the fields required by Mode are set.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeNone, ModeDefault, ModeTrustAny:
		return nil
	case ModeKeystore:
		if c.KeystorePath == "" {
			return errors.New("tlsctx: config: KeystorePath is required for mode keystore")
		}
		return nil
	case ModeFiles:
		if c.CertFile == "" || c.KeyFile == "" {
			return errors.New("tlsctx: config: CertFile and KeyFile are required for mode files")
		}
		return nil
	default:
		return fmt.Errorf("tlsctx: config: invalid mode %q", c.Mode)
	}
}

// Enabled reports whether the config selects any TLS material.
func (c *Config) Enabled() bool {
	return c.Mode != "" && c.Mode != ModeNone
}

// Build creates the Context selected by Mode. It returns nil, nil for mode "none".
func (c *Config) Build(logger *slog.Logger) (*Context, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch c.Mode {
	case ModeDefault:
		return Default(), nil
	case ModeTrustAny:
		logger.Warn("TLS peer verification disabled", "mode", c.Mode, "component", "tlsctx")
		if c.DataDir == "" {
			return TrustAny()
		}
		cert, err := LoadOrGenerateCertificate(c.DataDir, logger)
		if err != nil {
			return nil, err
		}
		return TrustAnyWithCertificate(cert), nil
	case ModeKeystore:
		pass, err := c.passphrase()
		if err != nil {
			return nil, err
		}
		return FromKeystore(c.KeystorePath, pass)
	case ModeFiles:
		return FromFiles(c.CertFile, c.KeyFile)
	}
	return nil, nil
}

func (c *Config) passphrase() (string, error) {
	if c.PassphraseFile == "" {
		return c.Passphrase, nil
	}
	data, err := os.ReadFile(c.PassphraseFile)
	if err != nil {
		return "", fmt.Errorf("tlsctx: config: read passphrase file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
