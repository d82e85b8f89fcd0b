package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceFiles, cfg.Source.Kind)
	assert.Equal(t, 16, cfg.Indexer.ChannelCapacity)

	n, err := cfg.Indexer.SpillThresholdBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64<<20), n)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	data := `
indexer:
  outputPath: /data/index.dat
  spillThreshold: 512KiB
  channelCapacity: 4
source:
  kind: files
  paths: [docs, more-docs]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/index.dat", cfg.Indexer.OutputPath)
	assert.Equal(t, 4, cfg.Indexer.ChannelCapacity)
	assert.Equal(t, []string{"docs", "more-docs"}, cfg.Source.Paths)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format, "unset keys keep defaults")
	n, err := cfg.Indexer.SpillThresholdBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(512<<10), n)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SP_INDEXER_SPILL_THRESHOLD", "1MB")
	t.Setenv("SP_SOURCE_PATHS", "a,b")
	t.Setenv("SP_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SP_INDEXER_CHANNEL_CAPACITY", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	n, err := cfg.Indexer.SpillThresholdBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), n)
	assert.Equal(t, []string{"a", "b"}, cfg.Source.Paths)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 16, cfg.Indexer.ChannelCapacity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no output", func(c *Config) { c.Indexer.OutputPath = "" }},
		{"bad threshold", func(c *Config) { c.Indexer.SpillThreshold = "lots" }},
		{"zero threshold", func(c *Config) { c.Indexer.SpillThreshold = "0" }},
		{"zero capacity", func(c *Config) { c.Indexer.ChannelCapacity = 0 }},
		{"files without paths", func(c *Config) { c.Source.Paths = nil }},
		{"unknown kind", func(c *Config) { c.Source.Kind = "ftp" }},
		{"kafka without topic", func(c *Config) {
			c.Source.Kind = SourceKafka
			c.Kafka.Topics.DocumentIngest = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Source.Paths = []string{"docs"}
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), sperrors.ErrInvalidInput)
		})
	}
}
