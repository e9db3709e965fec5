package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the fusiond daemon configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	Engine  EngineConfig  `toml:"engine"`
}

type ServiceConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type EngineConfig struct {
	// Resolvers lists hex-encoded 32-byte identities permitted to fill and
	// resolver-cancel orders. Empty means open access.
	Resolvers []string `toml:"resolvers"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Service: ServiceConfig{Name: "fusiond", Environment: "dev"},
		Server:  ServerConfig{Listen: ":8545"},
		Storage: StorageConfig{Path: "./fusiond-data"},
		Log:     LogConfig{MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load reads the TOML file at path, applying defaults for unset fields. An
// empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("config: server.listen must not be empty")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("config: storage.path must not be empty")
	}
	for _, resolver := range c.Engine.Resolvers {
		trimmed := strings.TrimPrefix(strings.TrimSpace(resolver), "0x")
		if len(trimmed) != 64 {
			return fmt.Errorf("config: resolver %q is not a 32-byte hex identity", resolver)
		}
	}
	return nil
}
