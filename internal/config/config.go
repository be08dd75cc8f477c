package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/planetary-social/planetary-cli/internal/feed"
)

const (
	defaultDBPath     = "planetary.db"
	defaultServerAddr = "127.0.0.1:8008"
	defaultPageSize   = 50
	defaultLogLevel   = "info"
)

// Config holds runtime settings for the CLI app.
type Config struct {
	DBPath     string `yaml:"db_path"`
	Identity   string `yaml:"identity"`
	RemoteURL  string `yaml:"remote_url"`
	PageSize   int    `yaml:"page_size"`
	ServerAddr string `yaml:"server_addr"`
	LogLevel   string `yaml:"log_level"`
}

func LoadFromEnv() (Config, error) {
	return Load(os.Getenv("PLANETARY_CONFIG"))
}

// Load reads PLANETARY_* variables and then overlays the YAML file at path,
// if any. Values set in the file win over the environment.
func Load(path string) (Config, error) {
	cfg := Config{
		DBPath:     os.Getenv("PLANETARY_DB_PATH"),
		Identity:   os.Getenv("PLANETARY_IDENTITY"),
		RemoteURL:  os.Getenv("PLANETARY_REMOTE_URL"),
		ServerAddr: os.Getenv("PLANETARY_SERVER_ADDR"),
		LogLevel:   os.Getenv("PLANETARY_LOG_LEVEL"),
	}
	if raw := os.Getenv("PLANETARY_PAGE_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("PLANETARY_PAGE_SIZE must be a number: %s", raw)
		}
		cfg.PageSize = n
	}

	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.overlay(file)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = defaultServerAddr
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) overlay(o Config) Config {
	if o.DBPath != "" {
		c.DBPath = o.DBPath
	}
	if o.Identity != "" {
		c.Identity = o.Identity
	}
	if o.RemoteURL != "" {
		c.RemoteURL = o.RemoteURL
	}
	if o.PageSize != 0 {
		c.PageSize = o.PageSize
	}
	if o.ServerAddr != "" {
		c.ServerAddr = o.ServerAddr
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	return c
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if c.Identity != "" && !strings.HasPrefix(c.Identity, "@") {
		return fmt.Errorf("Identity must start with '@': %s", c.Identity)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PageSize must be positive: %d", c.PageSize)
	}
	if c.PageSize > feed.MaxPageSize {
		return fmt.Errorf("PageSize must be at most %d: %d", feed.MaxPageSize, c.PageSize)
	}
	if c.ServerAddr == "" {
		return errors.New("ServerAddr is required")
	}
	if c.RemoteURL != "" && c.RemoteURL[len(c.RemoteURL)-1] == '/' {
		return fmt.Errorf("RemoteURL must not end with '/': %s", c.RemoteURL)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LogLevel is invalid: %w", err)
	}
	return nil
}

// RequireIdentity reports an error when no local identity is configured.
// Commands that read the local view database need one.
func (c Config) RequireIdentity() error {
	if c.Identity == "" {
		return errors.New("PLANETARY_IDENTITY is required")
	}
	return nil
}
