// Package config loads and validates build configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Source, Scan, Output, Filter, Kafka, Redis, Postgres, etc.).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// Config is the top-level build configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Scan     ScanConfig     `yaml:"scan"`
	Output   OutputConfig   `yaml:"output"`
	Filter   FilterConfig   `yaml:"filter"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Announce AnnounceConfig `yaml:"announce"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SourceConfig points at the OSM extract and sizes its decoder.
type SourceConfig struct {
	Path          string `yaml:"path"`
	DecoderProcs  int    `yaml:"decoderProcs"`
	PartitionSize int    `yaml:"partitionSize"`
}

// ScanConfig sizes the worker pool and the aggregator queue.
type ScanConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queueSize"`
}

// OutputConfig names the artifact directory and files.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	VocabFile    string `yaml:"vocabFile"`
	FilterFile   string `yaml:"filterFile"`
	ManifestFile string `yaml:"manifestFile"`
}

// FilterConfig selects the approximate-membership filter.
type FilterConfig struct {
	Kind              string  `yaml:"kind"`
	FalsePositiveRate float64 `yaml:"falsePositiveRate"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls whether the span tree is logged at the end of a run.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server and Pushgateway push.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           int    `yaml:"port"`
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	Job            string `yaml:"job"`
}

// AnnounceConfig bounds how long announcements may take.
type AnnounceConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// KafkaConfig holds Kafka broker and topic settings. Announcing to Kafka is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection parameters. Disabled when Addr is empty.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"poolSize"`
	ManifestKey string        `yaml:"manifestKey"`
	ManifestTTL time.Duration `yaml:"manifestTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters. Disabled when Host
// is empty.
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

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
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

// Default returns a Config suitable for a local planet build.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Path:          "planet.osm.pbf",
			DecoderProcs:  runtime.NumCPU(),
			PartitionSize: 8000,
		},
		Scan: ScanConfig{
			Workers:   runtime.NumCPU(),
			QueueSize: 1024,
		},
		Output: OutputConfig{
			Dir:          ".",
			VocabFile:    "vocab.fst",
			FilterFile:   "phrase.filter",
			ManifestFile: "manifest.json",
		},
		Filter: FilterConfig{
			Kind:              "xor8",
			FalsePositiveRate: 0.0039,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Job:  "osm-phrase-index",
		},
		Announce: AnnounceConfig{
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
		},
		Kafka: KafkaConfig{
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			PoolSize:    4,
			ManifestKey: "phraseindex:manifest:latest",
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "phraseindex",
			User:            "phraseindex",
			SSLMode:         "disable",
			MaxOpenConns:    2,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Source.Path == "":
		return apperrors.Newf(apperrors.ErrInvalidConfig, "source.path is required")
	case c.Source.PartitionSize <= 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "source.partitionSize must be positive, got %d", c.Source.PartitionSize)
	case c.Scan.Workers <= 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "scan.workers must be positive, got %d", c.Scan.Workers)
	case c.Scan.QueueSize <= 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "scan.queueSize must be positive, got %d", c.Scan.QueueSize)
	case c.Output.VocabFile == "" || c.Output.FilterFile == "" || c.Output.ManifestFile == "":
		return apperrors.Newf(apperrors.ErrInvalidConfig, "output file names must not be empty")
	}
	switch c.Filter.Kind {
	case "xor8":
	case "bloom":
		if c.Filter.FalsePositiveRate <= 0 || c.Filter.FalsePositiveRate >= 1 {
			return apperrors.Newf(apperrors.ErrInvalidConfig, "filter.falsePositiveRate must be in (0,1), got %v", c.Filter.FalsePositiveRate)
		}
	default:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "unknown filter.kind %q", c.Filter.Kind)
	}
	return nil
}

// applyEnvOverrides reads PI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PI_SOURCE_PATH"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("PI_SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Workers = n
		}
	}
	if v := os.Getenv("PI_SCAN_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.QueueSize = n
		}
	}
	if v := os.Getenv("PI_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("PI_FILTER_KIND"); v != "" {
		cfg.Filter.Kind = v
	}
	if v := os.Getenv("PI_FILTER_FP_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Filter.FalsePositiveRate = f
		}
	}
	if v := os.Getenv("PI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PI_METRICS_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("PI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
}
