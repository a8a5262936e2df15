// Package config provides configuration management for the stat front-end
// and daemon binaries.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for a stat binary. Daemon-only and
// front-end-only sections are both present; each binary reads the sections
// relevant to it and ignores the rest.
type Config struct {
	Frontend  FrontendConfig  `mapstructure:"frontend"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Topology  TopologyConfig  `mapstructure:"topology"`
	Sample    SampleConfig    `mapstructure:"sample"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

// FrontendConfig holds front-end binary (cmd/stat) configuration.
type FrontendConfig struct {
	Version   string `mapstructure:"version"` // "major.minor.revision"
	OutDir    string `mapstructure:"out_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// DaemonConfig holds daemon binary (cmd/statd) configuration.
type DaemonConfig struct {
	ListenHost string `mapstructure:"listen_host"`
	ListenPort int    `mapstructure:"listen_port"`
}

// TopologyConfig points at the overlay-tree topology description consumed
// by internal/topology.
type TopologyConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// SampleConfig controls the sampler's retry budget and frame rendering.
type SampleConfig struct {
	MaxRetries   int `mapstructure:"max_retries"`
	RetryDelayMs int `mapstructure:"retry_delay_ms"`
	WithLineInfo bool `mapstructure:"with_line_info"`
	WithThreads  bool `mapstructure:"with_threads"`
}

// TimeoutsConfig controls the front-end's per-round wait timeouts.
type TimeoutsConfig struct {
	AckSeconds   int `mapstructure:"ack_seconds"`
	GraphSeconds int `mapstructure:"graph_seconds"`
	WatchIntervalSeconds int `mapstructure:"watch_interval_seconds"`
}

// DatabaseConfig holds gather-round history store connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // postgres, mysql, or sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds result-archival configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
	Compress  bool   `mapstructure:"compress"` // gzip .dot bundles before upload
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path, falling back to
// defaults plus environment overrides when no file is present.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("stat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/stat")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes, useful for testing.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("frontend.version", "1.0.0")
	v.SetDefault("frontend.out_dir", "./stat-results")
	v.SetDefault("frontend.prefix", "stat")

	v.SetDefault("daemon.listen_host", "0.0.0.0")
	v.SetDefault("daemon.listen_port", 9780)

	v.SetDefault("sample.max_retries", 3)
	v.SetDefault("sample.retry_delay_ms", 50)

	v.SetDefault("timeouts.ack_seconds", 30)
	v.SetDefault("timeouts.graph_seconds", 30)
	v.SetDefault("timeouts.watch_interval_seconds", 60)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.database", "stat.db")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./stat-archive")
	v.SetDefault("storage.compress", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "./logs")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	switch c.Storage.Type {
	case "cos", "local":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Sample.MaxRetries < 0 {
		return fmt.Errorf("sample max_retries must be non-negative")
	}
	if c.Timeouts.AckSeconds <= 0 || c.Timeouts.GraphSeconds <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}
