// Package config loads service configuration from files and environment
// variables with validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/peerflow/p2pmatch/internal/matching/model"
	"github.com/peerflow/p2pmatch/internal/matching/optimization"
)

// RepositoryConfig selects and configures the queue store.
type RepositoryConfig struct {
	Backend     string `mapstructure:"backend"` // memory | postgres
	PostgresDSN string `mapstructure:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr"`
}

// KafkaConfig configures the optional notification sink.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// OptimizationOverrides seed the controller at startup; zero values keep
// the defaults.
type OptimizationOverrides struct {
	MatchOptimization   string  `mapstructure:"match_optimization"`
	QueueOptimization   string  `mapstructure:"queue_optimization"`
	RiskOptimization    string  `mapstructure:"risk_optimization"`
	MaxProcessingTimeMs int64   `mapstructure:"max_processing_time_ms"`
	MinMatchScore       float64 `mapstructure:"min_match_score"`
}

// Config is the full service configuration.
type Config struct {
	Environment     string                `mapstructure:"environment"`
	LogLevel        string                `mapstructure:"log_level"`
	HTTPAddr        string                `mapstructure:"http_addr"`
	SweepIntervalMs int64                 `mapstructure:"sweep_interval_ms"`
	MetricsCapacity int                   `mapstructure:"metrics_capacity"`
	Repository      RepositoryConfig      `mapstructure:"repository"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Optimization    OptimizationOverrides `mapstructure:"optimization"`
}

// Load reads configuration from the first existing path plus P2PMATCH_*
// environment variables, applies defaults and validates the result.
func Load(logger *zap.Logger, configPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("P2PMATCH")

	setDefaults(v)

	if len(configPaths) == 0 {
		configPaths = []string{"./config.yaml", "./configs/config.yaml", "/etc/p2pmatch/config.yaml"}
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		logger.Info("loaded configuration file", zap.String("path", path))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("sweep_interval_ms", 30000)
	v.SetDefault("metrics_capacity", 512)
	v.SetDefault("repository.backend", "memory")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "p2pmatch.matches")
}

func validate(cfg *Config) error {
	switch cfg.Repository.Backend {
	case "memory":
	case "postgres":
		if cfg.Repository.PostgresDSN == "" {
			return fmt.Errorf("repository.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown repository backend %q", cfg.Repository.Backend)
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if _, err := cfg.OptimizationPatch(); err != nil {
		return err
	}
	return nil
}

// OptimizationPatch converts the startup overrides into a controller
// patch, validating enum values against the closed strategy types.
func (c *Config) OptimizationPatch() (optimization.Patch, error) {
	var p optimization.Patch
	if c.Optimization.MatchOptimization != "" {
		m := model.MatchStrategy(c.Optimization.MatchOptimization)
		if !m.Valid() {
			return p, fmt.Errorf("unknown optimization.match_optimization %q", m)
		}
		p.MatchOptimization = &m
	}
	if c.Optimization.QueueOptimization != "" {
		q := model.QueueStrategy(c.Optimization.QueueOptimization)
		if !q.Valid() {
			return p, fmt.Errorf("unknown optimization.queue_optimization %q", q)
		}
		p.QueueOptimization = &q
	}
	if c.Optimization.RiskOptimization != "" {
		r := model.RiskStrategy(c.Optimization.RiskOptimization)
		if !r.Valid() {
			return p, fmt.Errorf("unknown optimization.risk_optimization %q", r)
		}
		p.RiskOptimization = &r
	}
	if c.Optimization.MaxProcessingTimeMs > 0 {
		ms := c.Optimization.MaxProcessingTimeMs
		p.MaxProcessingTimeMs = &ms
	}
	if c.Optimization.MinMatchScore > 0 {
		s := c.Optimization.MinMatchScore
		p.MinMatchScore = &s
	}
	return p, nil
}
