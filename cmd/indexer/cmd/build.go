package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/source"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/redis"
)

var buildFlags struct {
	output          string
	tempDir         string
	spillThreshold  string
	channelCapacity int
	keepSegments    bool
	source          string
	extensions      []string
	notify          bool
}

var pipelineMetrics = sync.OnceValue(func() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
})

// buildCmd runs one indexing pass.
var buildCmd = &cobra.Command{
	Use:   "build [path...]",
	Short: "build indexes the configured source into a single index file",
	Long: `The build command reads every document of the configured source and
writes the final index to the output path. Paths given as arguments select
the files source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyBuildFlags(cmd, cfg, args)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Metrics.Enabled {
			shutdown := metrics.StartServer(cfg.Metrics.Port)
			defer shutdown(context.Background())
		}

		opts, err := pipelineOptions(cfg)
		if err != nil {
			return err
		}
		src, closeSource, err := newSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSource()

		res, err := pipeline.Run(ctx, src, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "indexed %d documents into %s (%d terms, %s, %d segments)\n",
			res.Documents, res.OutputPath, res.Terms, humanize.IBytes(uint64(res.Bytes)), res.Segments)
		for _, f := range res.Skipped {
			fmt.Fprintf(out, "skipped %s: %v\n", f.Hint, f.Err)
		}

		if cfg.Notify.Enabled {
			if err := announce(ctx, cfg, res); err != nil {
				slog.Warn("completion notification failed", "run_id", res.RunID, "error", err)
			}
		}
		return nil
	},
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&buildFlags.output, "output", "o", "", "final index path")
	f.StringVar(&buildFlags.tempDir, "temp-dir", "", "directory for segment files")
	f.StringVar(&buildFlags.spillThreshold, "spill-threshold", "", "accumulated index size that triggers a spill, e.g. 64MiB")
	f.IntVar(&buildFlags.channelCapacity, "channel-capacity", 0, "capacity of every inter-stage channel")
	f.BoolVar(&buildFlags.keepSegments, "keep-segments", false, "keep segment files when a run fails")
	f.StringVar(&buildFlags.source, "source", "", "document source: files, postgres or kafka")
	f.StringSliceVar(&buildFlags.extensions, "ext", nil, "only index files with these extensions")
	f.BoolVar(&buildFlags.notify, "notify", false, "announce the finished index")
	RootCmd.AddCommand(buildCmd)
}

func applyBuildFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	f := cmd.Flags()
	if f.Changed("output") {
		cfg.Indexer.OutputPath = buildFlags.output
	}
	if f.Changed("temp-dir") {
		cfg.Indexer.TempDir = buildFlags.tempDir
	}
	if f.Changed("spill-threshold") {
		cfg.Indexer.SpillThreshold = buildFlags.spillThreshold
	}
	if f.Changed("channel-capacity") {
		cfg.Indexer.ChannelCapacity = buildFlags.channelCapacity
	}
	if f.Changed("keep-segments") {
		cfg.Indexer.KeepSegmentsOnFailure = buildFlags.keepSegments
	}
	if f.Changed("source") {
		cfg.Source.Kind = buildFlags.source
	}
	if f.Changed("ext") {
		cfg.Source.Extensions = buildFlags.extensions
	}
	if f.Changed("notify") {
		cfg.Notify.Enabled = buildFlags.notify
	}
	if len(args) > 0 {
		cfg.Source.Kind = config.SourceFiles
		cfg.Source.Paths = args
	}
}

func pipelineOptions(cfg *config.Config) (pipeline.Options, error) {
	threshold, err := cfg.Indexer.SpillThresholdBytes()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		OutputPath:            cfg.Indexer.OutputPath,
		TempDir:               cfg.Indexer.TempDir,
		SpillThreshold:        threshold,
		ChannelCapacity:       cfg.Indexer.ChannelCapacity,
		KeepSegmentsOnFailure: cfg.Indexer.KeepSegmentsOnFailure,
		Metrics:               pipelineMetrics(),
	}, nil
}

func newSource(ctx context.Context, cfg *config.Config) (pipeline.Source, func(), error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return source.NewPostgres(client.DB, cfg.Source.PostgresStatus), func() { client.Close() }, nil
	case config.SourceKafka:
		return &source.Kafka{
			Config:    cfg.Kafka,
			Topic:     cfg.Kafka.Topics.DocumentIngest,
			Partition: cfg.Source.KafkaPartition,
		}, func() {}, nil
	default:
		return &source.Files{Paths: cfg.Source.Paths, Extensions: cfg.Source.Extensions}, func() {}, nil
	}
}

func announce(ctx context.Context, cfg *config.Config, res *pipeline.Result) error {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	var n *notify.Notifier
	if cfg.Notify.InvalidateCache {
		cache, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer cache.Close()
		n = notify.New(producer, cache, cfg.Redis.CachePattern)
	} else {
		n = notify.New(producer, nil, "")
	}
	return n.Complete(ctx, res)
}
