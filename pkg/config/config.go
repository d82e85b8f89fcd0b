// Package config loads and validates the indexer configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// the pipeline itself and for every external system it talks to.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
)

// Source kinds accepted in SourceConfig.Kind.
const (
	SourceFiles    = "files"
	SourcePostgres = "postgres"
	SourceKafka    = "kafka"
)

// Config is the top-level application configuration.
type Config struct {
	Indexer  IndexerConfig  `yaml:"indexer"`
	Source   SourceConfig   `yaml:"source"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexerConfig controls the pipeline's spill threshold, temporary storage
// and output location.
type IndexerConfig struct {
	TempDir               string `yaml:"tempDir"`
	OutputPath            string `yaml:"outputPath"`
	SpillThreshold        string `yaml:"spillThreshold"`
	ChannelCapacity       int    `yaml:"channelCapacity"`
	KeepSegmentsOnFailure bool   `yaml:"keepSegmentsOnFailure"`
}

// SpillThresholdBytes parses SpillThreshold ("64MiB", "500 kB", "1048576").
func (c IndexerConfig) SpillThresholdBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.SpillThreshold)
	if err != nil {
		return 0, fmt.Errorf("%w: spill threshold %q: %v", sperrors.ErrInvalidInput, c.SpillThreshold, err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("%w: spill threshold %q out of range", sperrors.ErrInvalidInput, c.SpillThreshold)
	}
	return int64(n), nil
}

// SourceConfig selects where documents come from.
type SourceConfig struct {
	Kind           string   `yaml:"kind"`
	Paths          []string `yaml:"paths"`
	Extensions     []string `yaml:"extensions"`
	PostgresStatus string   `yaml:"postgresStatus"`
	KafkaPartition int      `yaml:"kafkaPartition"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	IndexComplete  string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection parameters and the searcher's query
// cache key pattern.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	PoolSize     int    `yaml:"poolSize"`
	CachePattern string `yaml:"cachePattern"`
}

// NotifyConfig controls what happens after a successful run.
type NotifyConfig struct {
	Enabled         bool `yaml:"enabled"`
	InvalidateCache bool `yaml:"invalidateCache"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate reports the first setting that would prevent a run.
func (c *Config) Validate() error {
	if c.Indexer.OutputPath == "" {
		return fmt.Errorf("%w: indexer.outputPath is required", sperrors.ErrInvalidInput)
	}
	if _, err := c.Indexer.SpillThresholdBytes(); err != nil {
		return err
	}
	if c.Indexer.ChannelCapacity <= 0 {
		return fmt.Errorf("%w: indexer.channelCapacity must be positive", sperrors.ErrInvalidInput)
	}
	switch c.Source.Kind {
	case SourceFiles:
		if len(c.Source.Paths) == 0 {
			return fmt.Errorf("%w: source.paths is required for the files source", sperrors.ErrInvalidInput)
		}
	case SourcePostgres:
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topics.DocumentIngest == "" {
			return fmt.Errorf("%w: kafka brokers and documentIngest topic are required", sperrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", sperrors.ErrInvalidInput, c.Source.Kind)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Indexer: IndexerConfig{
			TempDir:         os.TempDir(),
			OutputPath:      "index.dat",
			SpillThreshold:  "64MiB",
			ChannelCapacity: 16,
		},
		Source: SourceConfig{
			Kind:           SourceFiles,
			PostgresStatus: "PENDING",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchplatform",
			User:            "searchplatform",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				IndexComplete:  "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     4,
			CachePattern: "search:*",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_INDEXER_TEMP_DIR"); v != "" {
		cfg.Indexer.TempDir = v
	}
	if v := os.Getenv("SP_INDEXER_OUTPUT_PATH"); v != "" {
		cfg.Indexer.OutputPath = v
	}
	if v := os.Getenv("SP_INDEXER_SPILL_THRESHOLD"); v != "" {
		cfg.Indexer.SpillThreshold = v
	}
	if v := os.Getenv("SP_INDEXER_CHANNEL_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.ChannelCapacity = n
		}
	}
	if v := os.Getenv("SP_SOURCE_KIND"); v != "" {
		cfg.Source.Kind = v
	}
	if v := os.Getenv("SP_SOURCE_PATHS"); v != "" {
		cfg.Source.Paths = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
