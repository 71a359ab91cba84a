package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "planet.osm.pbf", cfg.Source.Path)
	assert.Equal(t, 1024, cfg.Scan.QueueSize)
	assert.Equal(t, "xor8", cfg.Filter.Kind)
	assert.Equal(t, "vocab.fst", cfg.Output.VocabFile)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.yaml")
	yaml := `
source:
  path: extract.osm.pbf
scan:
  workers: 3
filter:
  kind: bloom
  falsePositiveRate: 0.01
kafka:
  brokers: ["broker-1:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("PI_OUTPUT_DIR", "/tmp/out")
	t.Setenv("PI_SCAN_QUEUE_SIZE", "64")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "extract.osm.pbf", cfg.Source.Path)
	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.Equal(t, 64, cfg.Scan.QueueSize)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, "bloom", cfg.Filter.Kind)
	assert.Equal(t, []string{"broker-1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "index.complete", cfg.Kafka.Topics.IndexComplete)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no source", mutate: func(c *Config) { c.Source.Path = "" }},
		{name: "zero workers", mutate: func(c *Config) { c.Scan.Workers = 0 }},
		{name: "zero queue", mutate: func(c *Config) { c.Scan.QueueSize = 0 }},
		{name: "zero partition", mutate: func(c *Config) { c.Source.PartitionSize = 0 }},
		{name: "empty file name", mutate: func(c *Config) { c.Output.FilterFile = "" }},
		{name: "unknown filter", mutate: func(c *Config) { c.Filter.Kind = "cuckoo" }},
		{name: "bloom fp rate", mutate: func(c *Config) {
			c.Filter.Kind = "bloom"
			c.Filter.FalsePositiveRate = 1.5
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := Default().Postgres
	p.Host = "db"
	p.Password = "secret"
	assert.Equal(t, "host=db port=5432 user=phraseindex password=secret dbname=phraseindex sslmode=disable", p.DSN())
}
