package config

import (
	"time"

	"github.com/vietddude/snap2pass/internal/batch"
	"github.com/vietddude/snap2pass/internal/infra/api"
	"github.com/vietddude/snap2pass/internal/infra/api/retry"
	redisclient "github.com/vietddude/snap2pass/internal/infra/redis"
	"github.com/vietddude/snap2pass/internal/infra/storage/postgres"
	"github.com/vietddude/snap2pass/internal/infra/storage/sqlite"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	API      api.Config         `yaml:"api"`
	Retry    retry.Policy       `yaml:"retry"`
	Trials   TrialConfig        `yaml:"trials"`
	Batch    batch.Config       `yaml:"batch"`
	Storage  StorageConfig      `yaml:"storage"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	SQLite   sqlite.Config      `yaml:"sqlite"`
	Logging  LoggingConfig      `yaml:"logging"`
	Metrics  MetricsConfig      `yaml:"metrics"`
}

// TrialConfig holds resubmission settings.
type TrialConfig struct {
	MaxTrials int `yaml:"max_trials"`
}

// StorageConfig selects where trial state and outcome history live.
type StorageConfig struct {
	// memory, redis, postgres, sqlite, redis+postgres, redis+sqlite
	Type string `yaml:"type"`
	// Retention is how long outcome history is kept. 0 keeps it forever.
	Retention time.Duration `yaml:"retention"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MetricsConfig holds the metrics/health HTTP server settings.
type MetricsConfig struct {
	Port int `yaml:"port"` // 0 = disabled
}
