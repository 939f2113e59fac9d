package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SNAPSYNC_CONFIG_PATH: config file location (default: ~/.config/snapsync.toml)
//   - SNAPSYNC_HOME: base directory for snapsync data (default: ~/.local/share/snapsync)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"local_dir":   filepath.Join(baseDir, "archives"),
	}, nil
}

// getConfigPath returns the config file path, checking SNAPSYNC_CONFIG_PATH first,
// then falling back to the default ~/.config/snapsync.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("SNAPSYNC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "snapsync.toml"), nil
}

// getBaseDir returns the base directory for snapsync data, checking SNAPSYNC_HOME
// first, then falling back to the XDG default ~/.local/share/snapsync.
func getBaseDir() (string, error) {
	if path := os.Getenv("SNAPSYNC_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "snapsync"), nil
}

// LogLevel returns the minimum level written to the log, read from
// SNAPSYNC_LOG_LEVEL ("debug", "info", "warn" or "error"). It defaults to info.
func LogLevel() (slog.Level, error) {
	raw := os.Getenv("SNAPSYNC_LOG_LEVEL")
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid SNAPSYNC_LOG_LEVEL: %w", err)
	}
	return level, nil
}
