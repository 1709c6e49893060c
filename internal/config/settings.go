package config

import (
	"errors"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultServerAddress = "127.0.0.1:3000"

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Filters FiltersConfig `toml:"filters"`
}

type ServerConfig struct {
	Address string `toml:"address"`
	APIKey  string `toml:"api_key"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// FiltersConfig seeds the session list filter state at startup.
type FiltersConfig struct {
	RecentOnly *bool  `toml:"recent_only"`
	Source     string `toml:"source"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Address: defaultServerAddress,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file, falling back to defaults when it does not
// exist. JULES_SERVER and JULES_API_KEY environment variables take
// precedence over file values.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func loadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	if addr := strings.TrimSpace(os.Getenv("JULES_SERVER")); addr != "" {
		cfg.Server.Address = addr
	}
	if key := strings.TrimSpace(os.Getenv("JULES_API_KEY")); key != "" {
		cfg.Server.APIKey = key
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return toml.Unmarshal(data, out)
}

func (c Config) ServerAddress() string {
	addr := strings.TrimSpace(c.Server.Address)
	if addr == "" {
		return defaultServerAddress
	}
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return defaultServerAddress
	}
	return addr
}

func (c Config) BaseURL() string {
	return "http://" + c.ServerAddress()
}

func (c Config) WebSocketURL() string {
	return "ws://" + c.ServerAddress() + "/ws"
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

// RecentOnly reports the configured default for the recency filter; the
// filter is on unless the config explicitly disables it.
func (c Config) RecentOnly() bool {
	if c.Filters.RecentOnly == nil {
		return true
	}
	return *c.Filters.RecentOnly
}

func (c Config) SourceFilter() string {
	return strings.TrimSpace(c.Filters.Source)
}
