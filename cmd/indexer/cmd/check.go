package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/redis"
)

// checkCmd probes the dependencies of a build without running one.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "check verifies that a build could reach everything it needs",
	Long: `The check command probes the temp and output directories and whichever
of PostgreSQL, Kafka and Redis the configuration uses, then prints a JSON
report. It exits non-zero if any probe fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		report := newChecker(cfg).Run(ctx)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if report.Status != health.StatusUp {
			return fmt.Errorf("preflight checks failed")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(checkCmd)
}

func newChecker(cfg *config.Config) *health.Checker {
	c := health.NewChecker()
	c.Register("temp_dir", health.DirWritable(cfg.Indexer.TempDir))
	c.Register("output_dir", health.DirWritable(filepath.Dir(cfg.Indexer.OutputPath)))

	if cfg.Source.Kind == config.SourcePostgres {
		c.Register("postgres", func(ctx context.Context) error {
			client, err := postgres.New(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			return client.Close()
		})
	}
	if cfg.Source.Kind == config.SourceKafka || cfg.Notify.Enabled {
		c.Register("kafka", func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka)
		})
	}
	if cfg.Notify.Enabled && cfg.Notify.InvalidateCache {
		c.Register("redis", func(ctx context.Context) error {
			client, err := redis.NewClient(cfg.Redis)
			if err != nil {
				return err
			}
			return client.Close()
		})
	}
	return c
}
