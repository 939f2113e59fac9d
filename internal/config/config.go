package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the snapsync configuration file.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Sources    []SourceConfig   `toml:"sources"`
	Retention  RetentionConfig  `toml:"retention"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
}

// SourceConfig describes where one role's archives live. Type selects the
// backend and which of the remaining fields apply.
type SourceConfig struct {
	Role string `toml:"role"` // "local" or "remote"
	Type string `toml:"type"` // "memory", "filesystem" or "s3"

	// Ignore lists glob patterns of archive file names the source skips.
	Ignore []string `toml:"ignore,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3PathStyle bool   `toml:"s3_path_style,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"` // static credentials; empty uses the default chain
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// RetentionConfig bounds how many copies each role keeps. Zero keeps all.
type RetentionConfig struct {
	KeepLocal  int `toml:"keep_local"`
	KeepRemote int `toml:"keep_remote"`
}

// EncryptionConfig selects how uploaded archives are encrypted.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "none" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig represents configuration for the transfer history database.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a Config with default key, log and database locations
// under baseDir.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "snapsync.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "snapsync.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Source returns the source configured for role, or nil.
func (c *Config) Source(role string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].Role == role {
			return &c.Sources[i]
		}
	}
	return nil
}

// Validate checks that roles are known and unique.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, s := range c.Sources {
		switch s.Role {
		case "local", "remote":
		default:
			return fmt.Errorf("source role must be local or remote, got %q", s.Role)
		}
		if seen[s.Role] {
			return fmt.Errorf("source role %q configured more than once", s.Role)
		}
		seen[s.Role] = true
	}
	if c.Retention.KeepLocal < 0 || c.Retention.KeepRemote < 0 {
		return fmt.Errorf("retention limits must not be negative")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
