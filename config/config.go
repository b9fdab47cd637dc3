// Package config loads the chain-forge configuration from an optional YAML
// file, applies CHAINFORGE_* environment overrides on top and validates the
// result. The default difficulty lives here and is handed to the ledger
// explicitly; nothing below this package reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/Perafan18/chain-forge/storage"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Chain     ChainConfig     `yaml:"chain"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	APIKey       string        `yaml:"api_key"`
}

type StorageConfig struct {
	Engine string `yaml:"engine"` // badger|bolt|sqlite
	Path   string `yaml:"path"`
}

type ChainConfig struct {
	DefaultDifficulty int `yaml:"default_difficulty"`
	MaxDifficulty     int `yaml:"max_difficulty"`
}

type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"` // requests per second per client
	Burst float64 `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|text
}

// Default returns the configuration used when no file is given. Mining runs
// inside the request handler, so write_timeout has to grow along with any
// raised difficulty default.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:       "127.0.0.1:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			Engine: storage.EngineBadger,
			Path:   "data/chains",
		},
		Chain: ChainConfig{
			DefaultDifficulty: 2,
			MaxDifficulty:     10,
		},
		RateLimit: RateLimitConfig{
			Rate:  10,
			Burst: 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the file at path into the defaults. An empty path or a missing
// file leaves the defaults untouched; environment overrides and validation
// apply either way.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// keep defaults
		case err != nil:
			return Config{}, fmt.Errorf("config: opening %s: %w", path, err)
		default:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Listen = envOr("CHAINFORGE_LISTEN", cfg.Server.Listen)
	cfg.Server.APIKey = envOr("CHAINFORGE_API_KEY", cfg.Server.APIKey)
	cfg.Storage.Engine = envOr("CHAINFORGE_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.Path = envOr("CHAINFORGE_STORAGE_PATH", cfg.Storage.Path)
	cfg.Chain.DefaultDifficulty = envOrInt("CHAINFORGE_DIFFICULTY", cfg.Chain.DefaultDifficulty)
	cfg.Log.Level = envOr("CHAINFORGE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("CHAINFORGE_LOG_FORMAT", cfg.Log.Format)
}

func validate(cfg Config) error {
	if cfg.Server.Listen == "" {
		return errors.New("config: server.listen must not be empty")
	}

	switch cfg.Storage.Engine {
	case storage.EngineBadger, storage.EngineBolt, storage.EngineSQLite:
	default:
		return fmt.Errorf("config: unknown storage.engine %q", cfg.Storage.Engine)
	}
	if cfg.Storage.Path == "" {
		return errors.New("config: storage.path must not be empty")
	}

	if cfg.Chain.DefaultDifficulty < 1 || cfg.Chain.DefaultDifficulty > 10 {
		return fmt.Errorf("config: chain.default_difficulty %d not in [1,10]", cfg.Chain.DefaultDifficulty)
	}
	if cfg.Chain.MaxDifficulty < cfg.Chain.DefaultDifficulty || cfg.Chain.MaxDifficulty > 10 {
		return fmt.Errorf("config: chain.max_difficulty %d not in [%d,10]",
			cfg.Chain.MaxDifficulty, cfg.Chain.DefaultDifficulty)
	}

	if cfg.RateLimit.Rate < 0 || cfg.RateLimit.Burst < 0 {
		return errors.New("config: rate_limit values must not be negative")
	}
	if cfg.RateLimit.Rate > 0 && cfg.RateLimit.Burst < 1 {
		return errors.New("config: rate_limit.burst must be at least 1 when limiting")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: invalid log.level %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("config: invalid log.format %q", cfg.Log.Format)
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envOrInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
