package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/snap2pass/internal/batch"
	"github.com/vietddude/snap2pass/internal/infra/api"
	redisclient "github.com/vietddude/snap2pass/internal/infra/redis"
	"github.com/vietddude/snap2pass/internal/infra/storage/sqlite"
	"github.com/vietddude/snap2pass/internal/trial"
)

// APIKeyEnv is read when the config does not set api.api_key.
const APIKeyEnv = "SNAP2PASS_API_KEY"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	_ = applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) error {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = api.DefaultBaseURL
	}
	if cfg.API.Endpoint == "" {
		cfg.API.Endpoint = api.DefaultEndpoint
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = api.DefaultTimeout
	}
	if cfg.API.APIKey == "" {
		cfg.API.APIKey = os.Getenv(APIKeyEnv)
	}

	cfg.Retry = cfg.Retry.WithDefaults()

	if cfg.Trials.MaxTrials == 0 {
		cfg.Trials.MaxTrials = trial.DefaultMaxTrials
	}

	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = batch.DefaultConcurrency
	}

	cfg.Storage.Type = strings.ToLower(cfg.Storage.Type)
	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "memory"
	case "memory", "redis", "postgres", "sqlite", "redis+postgres", "redis+sqlite":
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = redisclient.DefaultTTL
	}

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = sqlite.DefaultPath
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return nil
}
