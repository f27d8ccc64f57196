// Package config handles project discovery and configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvFileName is the bindings file that marks a deckhand project root.
const EnvFileName = "deckhand.env"

// Config holds the deckhand project configuration.
type Config struct {
	// Root is the project root directory (contains templates/ and deckhand.env).
	Root string

	// TemplatesDir holds one unit template per service.
	TemplatesDir string

	// EnvFile is the flat key=value bindings file.
	EnvFile string

	// InstallDir is the service manager's unit discovery directory.
	InstallDir string

	// StateDir holds deckhand's own durable artifacts (history, backups).
	StateDir string

	// UserMode selects the per-user service manager.
	UserMode bool
}

// FindRoot searches upward from the current directory for the project root,
// identified by a templates/ directory next to a deckhand.env file.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		templatesDir := filepath.Join(dir, "templates")
		envFile := filepath.Join(dir, EnvFileName)
		if info, err := os.Stat(templatesDir); err == nil && info.IsDir() {
			if _, err := os.Stat(envFile); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("project root not found (no templates/ directory with %s)", EnvFileName)
}

// Load finds the project root and returns a Config. Paths can be overridden
// with DECKHAND_TEMPLATES, DECKHAND_ENV_FILE, DECKHAND_INSTALL_DIR, and
// DECKHAND_STATE_DIR.
func Load(userMode bool) (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Root:         root,
		TemplatesDir: filepath.Join(root, "templates"),
		EnvFile:      filepath.Join(root, EnvFileName),
		InstallDir:   DefaultInstallDir(userMode),
		StateDir:     filepath.Join(root, ".deckhand"),
		UserMode:     userMode,
	}

	if v := os.Getenv("DECKHAND_TEMPLATES"); v != "" {
		cfg.TemplatesDir = v
	}
	if v := os.Getenv("DECKHAND_ENV_FILE"); v != "" {
		cfg.EnvFile = v
	}
	if v := os.Getenv("DECKHAND_INSTALL_DIR"); v != "" {
		cfg.InstallDir = v
	}
	if v := os.Getenv("DECKHAND_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}

	return cfg, nil
}

// DefaultInstallDir returns the quadlet unit discovery directory for the
// selected manager scope.
func DefaultInstallDir(userMode bool) string {
	if userMode {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		return filepath.Join(home, ".config", "containers", "systemd")
	}
	return "/etc/containers/systemd"
}

// BackupDir returns the path where overwritten units are backed up.
func (c *Config) BackupDir() string {
	return filepath.Join(c.StateDir, "backups")
}
